package category

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"mangashelf/internal/sync"
	"mangashelf/pkg/utils"
)

type Handler struct {
	Registry *Registry
	Hub      *sync.Hub
}

func NewHandler(reg *Registry, hub *sync.Hub) *Handler {
	return &Handler{Registry: reg, Hub: hub}
}

// RegisterRoutes mounts read routes on read and mutating routes on write.
// Both groups are expected to share the /categories prefix.
func (h *Handler) RegisterRoutes(read, write *gin.RouterGroup) {
	read.GET("", h.list)
	read.GET("/selected", h.selected)

	write.POST("", h.add)
	write.PUT("/order", h.reorder)
	write.PUT("/selected", h.selectCategory)
	write.PUT("/:name", h.rename)
	write.DELETE("/:name", h.remove)
}

type nameReq struct {
	Name string `json:"name"`
}

func (r nameReq) Validate() error {
	return ValidateName(r.Name)
}

type orderReq struct {
	Names []string `json:"names"`
}

func (r orderReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Names, validation.Required),
	)
}

func (h *Handler) list(c *gin.Context) {
	cats, err := h.Registry.Categories(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err, "list failed")
		return
	}
	names, err := h.Registry.List(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err, "list failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"names": names, "items": cats})
}

func (h *Handler) add(c *gin.Context) {
	var req nameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := req.Validate(); err != nil {
		utils.RespondError(c, err, "invalid category")
		return
	}

	name := strings.TrimSpace(req.Name)
	created, err := h.Registry.Ensure(c.Request.Context(), name)
	if err != nil {
		utils.RespondError(c, err, "add failed")
		return
	}
	if created {
		h.publish(name, "added")
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "created": created})
}

func (h *Handler) rename(c *gin.Context) {
	var req nameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := req.Validate(); err != nil {
		utils.RespondError(c, err, "invalid category")
		return
	}

	oldName := c.Param("name")
	newName := strings.TrimSpace(req.Name)
	if err := h.Registry.Rename(c.Request.Context(), oldName, newName); err != nil {
		utils.RespondError(c, err, "rename failed")
		return
	}
	h.publish(newName, "renamed from "+oldName)
	c.JSON(http.StatusOK, gin.H{"name": newName})
}

func (h *Handler) remove(c *gin.Context) {
	name := c.Param("name")
	if err := h.Registry.Remove(c.Request.Context(), name); err != nil {
		utils.RespondError(c, err, "remove failed")
		return
	}
	h.publish(name, "removed")
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handler) reorder(c *gin.Context) {
	var req orderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Registry.Reorder(c.Request.Context(), req.Names); err != nil {
		utils.RespondError(c, err, "reorder failed")
		return
	}
	h.publish("", "reordered")
	h.list(c)
}

func (h *Handler) selected(c *gin.Context) {
	name, err := h.Registry.Selected(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err, "get selection failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}

func (h *Handler) selectCategory(c *gin.Context) {
	var req nameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Registry.Select(c.Request.Context(), req.Name); err != nil {
		utils.RespondError(c, err, "select failed")
		return
	}
	h.selected(c)
}

func (h *Handler) publish(name, summary string) {
	if h.Hub == nil {
		return
	}
	ev := sync.NewEvent(sync.EventCategoryChanged)
	ev.Category = name
	ev.Summary = summary
	go h.Hub.Publish(ev)
}
