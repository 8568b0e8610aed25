// Package docs registers the OpenAPI description of the invoice API with swag.
// It mirrors the handler annotations in internal/interfaces/http/handler.
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/invoices/pdf": {
            "get": {
                "description": "Runs the pipeline for an order and returns the PDF as an attachment",
                "produces": ["application/pdf"],
                "tags": ["invoices"],
                "summary": "Render an invoice PDF",
                "parameters": [
                    {"type": "integer", "description": "Order ID", "name": "orderId", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/invoices/generate": {
            "get": {
                "produces": ["application/json"],
                "tags": ["invoices"],
                "summary": "Generate and store an invoice",
                "parameters": [
                    {"type": "integer", "description": "Order ID", "name": "orderId", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/invoice.StoredInvoice"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/invoices/link": {
            "get": {
                "produces": ["application/json"],
                "tags": ["invoices"],
                "summary": "Generate, store and link an invoice",
                "parameters": [
                    {"type": "integer", "description": "Order ID", "name": "orderId", "in": "query", "required": true},
                    {"type": "integer", "description": "Link lifetime in seconds", "name": "ttl", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/invoice.LinkResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/invoices/signed-url": {
            "get": {
                "produces": ["application/json"],
                "tags": ["invoices"],
                "summary": "Link the stored invoice of an order",
                "parameters": [
                    {"type": "integer", "description": "Order ID", "name": "orderId", "in": "query", "required": true},
                    {"type": "integer", "description": "Link lifetime in seconds", "name": "ttl", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/invoice.LinkResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        }
    },
    "definitions": {
        "dto.ErrorInfo": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "dto.Response": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "error": {"$ref": "#/definitions/dto.ErrorInfo"},
                "request_id": {"type": "string"}
            }
        },
        "invoice.LinkResponse": {
            "type": "object",
            "properties": {
                "url": {"type": "string"},
                "expires_at": {"type": "string", "format": "date-time"}
            }
        },
        "invoice.StoredInvoice": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "file": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Invoice PDF API",
	Description:      "Renders order invoices to PDF and issues expiring download links.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
