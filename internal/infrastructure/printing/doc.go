// Package printing renders invoices to PDF.
//
// This package contains:
// - TemplateEngine, which binds invoice data to a compiled html/template
// - Engine and Session, the headless browser abstraction
// - ChromedpEngine, the Engine implementation over the Chrome DevTools Protocol
// - Rasterizer, which converts markup to PDF through a bounded session pool
// - LaunchProfile selection for managed and interactive hosts
//
// Example usage:
//
//	engine := NewChromedpEngine(ChromedpConfig{
//	    Profile: SelectLaunchProfile(LaunchOptions{Environment: "auto"}, nil),
//	})
//	defer engine.Close()
//
//	templates, err := LoadTemplateEngine("", WithLogoURL("https://example.com/logo.png"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	doc, err := templates.Render(ctx, data, RenderOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rasterizer := NewRasterizer(engine, RasterizerConfig{MaxConcurrent: 4})
//	artifact, err := rasterizer.ToPDF(ctx, doc, invoice.DefaultPageLayout())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Generated PDF: %d bytes\n", artifact.Size())
package printing
