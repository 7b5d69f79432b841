package entry

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"mangashelf/internal/sync"
	"mangashelf/pkg/database"
	"mangashelf/pkg/models"
	"mangashelf/pkg/utils"
)

// CategoryEnsurer creates a category when it does not exist yet.
type CategoryEnsurer interface {
	Ensure(ctx context.Context, name string) (bool, error)
}

type Handler struct {
	Repo       *Repo
	Categories CategoryEnsurer
	Hub        *sync.Hub
}

func NewHandler(repo *Repo, categories CategoryEnsurer, hub *sync.Hub) *Handler {
	return &Handler{Repo: repo, Categories: categories, Hub: hub}
}

// RegisterRoutes mounts read routes on read and mutating routes on write.
func (h *Handler) RegisterRoutes(read, write *gin.RouterGroup) {
	read.GET("", h.list)
	read.GET("/:id", h.getOne)

	write.POST("", h.create)
	write.PUT("/:id", h.update)
	write.DELETE("/:id", h.remove)
	write.POST("/:id/open", h.open)
}

// Validate checks an entry submitted through an explicit add or edit.
// Imported records are not validated.
func Validate(e models.Entry) error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.Title, validation.Required.Error("title is required"), validation.Length(1, 500)),
		validation.Field(&e.Rating, validation.Min(models.MinRating), validation.Max(models.MaxRating)),
		validation.Field(&e.Category, validation.Length(0, 100)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return nil
}

func (h *Handler) list(c *gin.Context) {
	category := strings.TrimSpace(c.Query("category"))
	if category == "" {
		category = models.AllCategory
	}
	items, err := h.Repo.Search(c.Request.Context(), category, c.Query("q"), c.Query("mode"))
	if err != nil {
		utils.RespondError(c, err, "list failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total": len(items),
		"items": items,
	})
}

func (h *Handler) getOne(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	e, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err, "get failed")
		return
	}
	if e == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) create(c *gin.Context) {
	var req models.Entry
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := Validate(req); err != nil {
		utils.RespondError(c, err, "invalid entry")
		return
	}

	req.ID = 0
	req.Title = strings.TrimSpace(req.Title)
	req.Category = strings.TrimSpace(req.Category)
	req.CreatedAt, req.OpenedAt, req.EditedAt = nil, nil, nil

	ctx := c.Request.Context()
	var id int64
	err := database.ExecTx(ctx, h.Repo.DB, func(ctx context.Context) error {
		if err := h.ensureCategory(ctx, req.Category); err != nil {
			return err
		}
		var err error
		id, err = h.Repo.Add(ctx, req)
		return err
	})
	if err != nil {
		utils.RespondError(c, err, "save failed")
		return
	}

	h.respondSaved(c, http.StatusCreated, id, sync.EventEntryCreated)
}

func (h *Handler) update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req models.Entry
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := Validate(req); err != nil {
		utils.RespondError(c, err, "invalid entry")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Category = strings.TrimSpace(req.Category)

	ctx := c.Request.Context()
	err := database.ExecTx(ctx, h.Repo.DB, func(ctx context.Context) error {
		cur, err := h.Repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return fmt.Errorf("entry %d: %w", id, ErrNotFound)
		}
		if req.OpenedAt == nil {
			req.OpenedAt = cur.OpenedAt
		}
		if err := h.ensureCategory(ctx, req.Category); err != nil {
			return err
		}
		return h.Repo.Update(ctx, id, req)
	})
	if err != nil {
		utils.RespondError(c, err, "save failed")
		return
	}

	h.respondSaved(c, http.StatusOK, id, sync.EventEntryUpdated)
}

func (h *Handler) remove(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.Repo.Delete(c.Request.Context(), id); err != nil {
		utils.RespondError(c, err, "delete failed")
		return
	}

	if h.Hub != nil {
		ev := sync.NewEvent(sync.EventEntryDeleted)
		ev.EntryID = id
		go h.Hub.Publish(ev)
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handler) open(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.Repo.MarkOpened(c.Request.Context(), id); err != nil {
		utils.RespondError(c, err, "open failed")
		return
	}
	h.respondSaved(c, http.StatusOK, id, sync.EventEntryOpened)
}

func (h *Handler) ensureCategory(ctx context.Context, name string) error {
	if h.Categories == nil {
		return nil
	}
	_, err := h.Categories.Ensure(ctx, name)
	return err
}

// respondSaved returns the canonical stored record and announces it.
func (h *Handler) respondSaved(c *gin.Context, status int, id int64, eventType string) {
	saved, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err, "fetch saved failed")
		return
	}
	if saved == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if h.Hub != nil {
		ev := sync.NewEvent(eventType)
		ev.EntryID = saved.ID
		ev.Title = saved.Title
		ev.Category = saved.Category
		go h.Hub.Publish(ev)
	}
	c.JSON(status, saved)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
