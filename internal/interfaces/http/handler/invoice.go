package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	invoiceapp "github.com/invoicepdf/backend/internal/application/invoice"
	"github.com/invoicepdf/backend/internal/domain/invoice"
	"github.com/invoicepdf/backend/internal/infrastructure/logger"
	"github.com/invoicepdf/backend/internal/infrastructure/storage"
	"github.com/invoicepdf/backend/internal/interfaces/http/dto"
	"github.com/invoicepdf/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

const pdfContentType = "application/pdf"

// maxTTLSeconds is the largest ttl that converts to a time.Duration without
// overflowing. The artifact store caps links far below it.
const maxTTLSeconds = int64(math.MaxInt64 / int64(time.Second))

// InvoiceGenerator is the application surface used by InvoiceHandler
type InvoiceGenerator interface {
	GeneratePDF(ctx context.Context, id invoice.OrderID) (*invoice.PdfArtifact, error)
	GenerateAndStore(ctx context.Context, id invoice.OrderID) (*invoiceapp.StoredInvoice, error)
	GenerateLink(ctx context.Context, id invoice.OrderID, ttl time.Duration) (*invoice.SignedAccessGrant, error)
	GetLink(ctx context.Context, id invoice.OrderID, ttl time.Duration) (*invoice.SignedAccessGrant, error)
}

// LinkedFileStore serves artifacts behind locally signed links
type LinkedFileStore interface {
	VerifyLink(key, token string) error
	Open(ctx context.Context, key string) (*os.File, error)
}

// InvoiceHandler handles invoice HTTP requests
type InvoiceHandler struct {
	BaseHandler
	service InvoiceGenerator
	files   LinkedFileStore
	logger  *zap.Logger
}

// InvoiceHandlerOption configures InvoiceHandler
type InvoiceHandlerOption func(*InvoiceHandler)

// WithLinkedFiles enables GET /files/*key for a local storage backend
func WithLinkedFiles(files LinkedFileStore) InvoiceHandlerOption {
	return func(h *InvoiceHandler) {
		h.files = files
	}
}

// WithHandlerLogger sets the logger
func WithHandlerLogger(l *zap.Logger) InvoiceHandlerOption {
	return func(h *InvoiceHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(service InvoiceGenerator, opts ...InvoiceHandlerOption) *InvoiceHandler {
	h := &InvoiceHandler{
		service: service,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// invoiceRequest is a validated invoice request
type invoiceRequest struct {
	orderID invoice.OrderID
	ttl     time.Duration
}

// parseRequest binds the order id from the query string, or from the body of
// a POST, and validates it. It writes the 400 response itself and returns
// false when the request is rejected.
func (h *InvoiceHandler) parseRequest(c *gin.Context) (invoiceRequest, bool) {
	var query dto.InvoiceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return invoiceRequest{}, false
	}

	if query.RawOrderID() == "" && c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
		var body dto.InvoiceQuery
		if err := c.ShouldBind(&body); err != nil {
			middleware.HandleValidationError(c, err)
			return invoiceRequest{}, false
		}
		query.OrderID, query.OrderIDAlias = body.OrderID, body.OrderIDAlias
		if query.TTL == 0 {
			query.TTL = body.TTL
		}
	}

	id, err := invoice.ParseOrderID(query.RawOrderID())
	if err != nil {
		h.HandleError(c, err)
		return invoiceRequest{}, false
	}

	ttlSeconds := query.TTL
	if ttlSeconds > maxTTLSeconds {
		ttlSeconds = maxTTLSeconds
	}

	c.Request = c.Request.WithContext(logger.WithOrderID(c.Request.Context(), id.String()))
	return invoiceRequest{
		orderID: id,
		ttl:     time.Duration(ttlSeconds) * time.Second,
	}, true
}

// GeneratePDF godoc
// @Summary      Render an invoice PDF
// @Description  Runs the pipeline for an order and returns the PDF as an attachment
// @Tags         invoices
// @Produce      application/pdf
// @Param        orderId  query  int  true  "Order ID"
// @Success      200
// @Failure      400  {object}  dto.Response
// @Failure      404  {object}  dto.Response
// @Failure      500  {object}  dto.Response
// @Router       /invoices/pdf [get]
func (h *InvoiceHandler) GeneratePDF(c *gin.Context) {
	req, ok := h.parseRequest(c)
	if !ok {
		return
	}

	artifact, err := h.service.GeneratePDF(c.Request.Context(), req.orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+invoice.FileName(req.orderID))
	c.Header("Content-Length", strconv.Itoa(len(artifact.Data)))
	c.Data(http.StatusOK, pdfContentType, artifact.Data)
}

// GenerateAndStore godoc
// @Summary      Generate and store an invoice
// @Tags         invoices
// @Produce      json
// @Param        orderId  query  int  true  "Order ID"
// @Success      200  {object}  invoiceapp.StoredInvoice
// @Router       /invoices/generate [get]
func (h *InvoiceHandler) GenerateAndStore(c *gin.Context) {
	req, ok := h.parseRequest(c)
	if !ok {
		return
	}

	result, err := h.service.GenerateAndStore(c.Request.Context(), req.orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GenerateLink godoc
// @Summary      Generate, store and link an invoice
// @Tags         invoices
// @Produce      json
// @Param        orderId  query  int  true   "Order ID"
// @Param        ttl      query  int  false  "Link lifetime in seconds"
// @Success      200  {object}  invoiceapp.LinkResponse
// @Router       /invoices/link [get]
func (h *InvoiceHandler) GenerateLink(c *gin.Context) {
	req, ok := h.parseRequest(c)
	if !ok {
		return
	}

	grant, err := h.service.GenerateLink(c.Request.Context(), req.orderID, req.ttl)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoiceapp.ToLinkResponse(grant))
}

// GetLink godoc
// @Summary      Link the stored invoice of an order
// @Tags         invoices
// @Produce      json
// @Param        orderId  query  int  true   "Order ID"
// @Param        ttl      query  int  false  "Link lifetime in seconds"
// @Success      200  {object}  invoiceapp.LinkResponse
// @Failure      404  {object}  dto.Response
// @Router       /invoices/signed-url [get]
func (h *InvoiceHandler) GetLink(c *gin.Context) {
	req, ok := h.parseRequest(c)
	if !ok {
		return
	}

	grant, err := h.service.GetLink(c.Request.Context(), req.orderID, req.ttl)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoiceapp.ToLinkResponse(grant))
}

// ServeFile streams a locally stored artifact when the link token is valid
func (h *InvoiceHandler) ServeFile(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")

	var query dto.LinkQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.Forbidden(c, "Invalid download link")
		return
	}

	if err := h.files.VerifyLink(key, query.Token); err != nil {
		if errors.Is(err, storage.ErrLinkExpired) {
			h.Forbidden(c, "Download link has expired")
			return
		}
		h.Forbidden(c, "Invalid download link")
		return
	}

	file, err := h.files.Open(c.Request.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrObjectNotFound):
			h.NotFound(c, "Invoice not found")
		case errors.Is(err, storage.ErrInvalidKey):
			h.BadRequest(c, "Invalid file key")
		default:
			logger.WithLogger(c.Request.Context(), h.logger).Error("failed to open stored invoice",
				zap.String("key", key), zap.Error(err))
			h.InternalError(c)
		}
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		logger.WithLogger(c.Request.Context(), h.logger).Error("failed to stat stored invoice",
			zap.String("key", key), zap.Error(err))
		h.InternalError(c)
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), pdfContentType, file, map[string]string{
		"Content-Disposition": "attachment; filename=" + path.Base(key),
	})
}
