package handlers

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/t766/control/internal/bundle"
	"github.com/t766/control/internal/utils"
)

// GetManifests handles GET /manifests by streaming a tar of the manifest tree
func (h *Handler) GetManifests(c *fiber.Ctx) error {
	dir := filepath.Join(h.manifestRoot, bundle.ManifestsDir)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		h.logger.Error("Manifest directory unavailable", "path", dir, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "MANIFESTS_UNAVAILABLE", "Manifest directory unavailable")
	}

	root := h.manifestRoot
	logger := h.logger

	c.Set(fiber.HeaderContentType, utils.ContentTypeTar)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		// Headers are already sent, a failure truncates the archive
		if err := bundle.Write(w, root, bundle.ManifestsDir, bundle.ModulesDir); err != nil {
			logger.Error("Failed to stream manifest bundle", "error", err)
		}
		if err := w.Flush(); err != nil {
			logger.Warn("Client went away during manifest stream", "error", err)
		}
	})
	return nil
}

// validDataFilename rejects anything that could address outside the manifest root
func validDataFilename(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.Contains(name, "..") && !strings.ContainsAny(name, `/\`)
}

// GetDataFile handles GET /data/:filename
func (h *Handler) GetDataFile(c *fiber.Ctx) error {
	name := c.Params("filename")
	if !validDataFilename(name) {
		h.logger.Warn("Rejected data file request", "filename", name, "ip", c.IP())
		return errorJSON(c, fiber.StatusBadRequest, "INVALID_FILENAME", "Invalid filename")
	}

	path := filepath.Join(h.manifestRoot, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return errorJSON(c, fiber.StatusNotFound, "NOT_FOUND", "File not found")
	}

	f, err := os.Open(path)
	if err != nil {
		h.logger.Error("Failed to open data file", "path", path, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "READ_FAILED", "Failed to open file")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	// fasthttp closes f once the body is sent
	return c.SendStream(f, int(info.Size()))
}
