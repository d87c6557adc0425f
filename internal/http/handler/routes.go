package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app. db may be nil
// when documents are kept in memory.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService) {
	var pinger Pinger
	if db != nil {
		pinger = db
	}
	app.Get("/health", HealthCheck(pinger))
	app.Get("/healthz", LivenessProbe())

	app.Get("/documents", ListDocuments(docSvc))
	app.Post("/documents", UploadDocuments(docSvc))
	app.Get("/documents/:id", GetDocument(docSvc))
	app.Patch("/documents/:id", UpdateMetadata(docSvc))
	app.Post("/documents/:id/versions", AddDocumentVersion(docSvc))
	app.Get("/documents/:id/download", GetDownloadURL(docSvc))
	app.Get("/documents/:id/thumbnail", GetThumbnailURL(docSvc))
}
