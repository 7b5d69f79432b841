package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mangashelf/internal/reconcile"
	"mangashelf/internal/sync"
	"mangashelf/pkg/models"
	"mangashelf/pkg/utils"
)

// Importer applies a decoded batch to the collection.
type Importer interface {
	ImportBatch(ctx context.Context, incoming []models.Entry) (reconcile.Result, error)
}

// MaxImportBytes caps the request body accepted by POST /import.
const MaxImportBytes = 32 << 20

type Handler struct {
	Importer Importer
	Exporter *Exporter
	Hub      *sync.Hub
	Log      *slog.Logger
	MaxBytes int64
}

func NewHandler(imp Importer, exp *Exporter, hub *sync.Hub) *Handler {
	return &Handler{
		Importer: imp,
		Exporter: exp,
		Hub:      hub,
		Log:      slog.Default(),
		MaxBytes: MaxImportBytes,
	}
}

func (h *Handler) RegisterRoutes(read, write *gin.RouterGroup) {
	read.GET("/export", h.export)
	write.POST("/import", h.importBatch)
}

func (h *Handler) importBatch(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBytes)
	batch, err := DecodeBatch(body, h.Log)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("import exceeds %d bytes", tooLarge.Limit)})
			return
		}
		utils.RespondError(c, err, "invalid import")
		return
	}

	res, err := h.Importer.ImportBatch(c.Request.Context(), batch)
	if err != nil {
		utils.RespondError(c, err, "import failed")
		return
	}

	if h.Hub != nil {
		ev := sync.NewEvent(sync.EventImportCompleted)
		ev.Summary = fmt.Sprintf("%d inserted, %d merged, %d archived, %d failed",
			res.Inserted, res.Merged, res.Archived, len(res.Failures))
		go h.Hub.Publish(ev)
	}

	status := http.StatusOK
	if len(res.Failures) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, res)
}

func (h *Handler) export(c *gin.Context) {
	ctx := c.Request.Context()
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "json")))

	var err error
	switch format {
	case "json":
		c.Header("Content-Type", "application/json; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="library.json"`)
		err = h.Exporter.JSON(ctx, c.Writer)
	case "md", "markdown":
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="library.md"`)
		err = h.Exporter.Markdown(ctx, c.Writer)
	case "csv":
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="library.csv"`)
		err = h.Exporter.CSV(ctx, c.Writer)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be one of: json, md, csv"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		if !c.Writer.Written() {
			utils.RespondError(c, err, "export failed")
		}
	}
}
