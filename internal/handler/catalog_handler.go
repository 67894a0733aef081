package handler

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/habityfy/internal/db"
	"github.com/habityfy/internal/service"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

type catalogEntryPayload struct {
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	Description    string `json:"description"`
	TypeTag        string `json:"type_tag"`
	DefaultCadence string `json:"default_cadence"`
	Icon           string `json:"icon"`
	SortOrder      int    `json:"sort_order"`
	Status         string `json:"status"`
}

// ListCatalog 返回上架中的精选习惯目录
func (a *API) ListCatalog(c *gin.Context) {
	entries, err := a.catalog.ListActive()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取习惯目录失败")
		return
	}

	items := make([]gin.H, 0, len(entries))
	for i := range entries {
		items = append(items, catalogToPayload(&entries[i], false))
	}

	c.JSON(http.StatusOK, gin.H{"catalog": items})
}

// GetCatalogEntry 返回单个目录条目，描述渲染为消毒后的 HTML
func (a *API) GetCatalogEntry(c *gin.Context) {
	entry, err := a.catalog.GetBySlug(c.Param("slug"))
	if err != nil {
		if errors.Is(err, service.ErrCatalogEntryNotFound) {
			respondError(c, http.StatusNotFound, "目录条目不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取目录条目失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"entry": catalogToPayload(entry, true)})
}

// AdminListCatalog 返回全部目录条目，供后台管理
func (a *API) AdminListCatalog(c *gin.Context) {
	entries, err := a.catalog.List(service.CatalogFilter{
		Status:  c.Query("status"),
		TypeTag: c.Query("type_tag"),
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取目录条目失败")
		return
	}

	items := make([]gin.H, 0, len(entries))
	for i := range entries {
		items = append(items, catalogToPayload(&entries[i], false))
	}

	c.JSON(http.StatusOK, gin.H{"catalog": items})
}

// AdminCreateCatalogEntry 新建目录条目
func (a *API) AdminCreateCatalogEntry(c *gin.Context) {
	input, ok := parseCatalogInput(c)
	if !ok {
		return
	}

	entry, err := a.catalog.Create(input)
	if err != nil {
		handleCatalogError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entry": catalogToPayload(entry, false)})
}

// AdminUpdateCatalogEntry 更新目录条目
func (a *API) AdminUpdateCatalogEntry(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的条目ID")
		return
	}

	input, ok := parseCatalogInput(c)
	if !ok {
		return
	}

	entry, err := a.catalog.Update(id, input)
	if err != nil {
		handleCatalogError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entry": catalogToPayload(entry, false)})
}

// AdminDeleteCatalogEntry 删除目录条目
func (a *API) AdminDeleteCatalogEntry(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的条目ID")
		return
	}

	if err := a.catalog.Delete(id); err != nil {
		respondError(c, http.StatusInternalServerError, "删除目录条目失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func parseCatalogInput(c *gin.Context) (service.CatalogInput, bool) {
	var payload catalogEntryPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return service.CatalogInput{}, false
	}

	return service.CatalogInput{
		Name:           payload.Name,
		Slug:           payload.Slug,
		Description:    payload.Description,
		TypeTag:        payload.TypeTag,
		DefaultCadence: payload.DefaultCadence,
		Icon:           payload.Icon,
		SortOrder:      payload.SortOrder,
		Status:         payload.Status,
	}, true
}

func catalogToPayload(entry *db.MasterHabit, withHTML bool) gin.H {
	item := gin.H{
		"id":              entry.ID,
		"name":            entry.Name,
		"slug":            entry.Slug,
		"description":     entry.Description,
		"type_tag":        entry.TypeTag,
		"default_cadence": entry.DefaultCadence,
		"icon":            entry.Icon,
		"sort_order":      entry.SortOrder,
		"status":          entry.Status,
	}
	if withHTML {
		item["description_html"] = renderMarkdown(entry.Description)
	}
	return item
}

// renderMarkdown 渲染 Markdown 并消毒，渲染失败时回退为原文
func renderMarkdown(source string) string {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(source), &buf); err != nil {
		return sanitizer.Sanitize(source)
	}
	return sanitizer.Sanitize(buf.String())
}

func handleCatalogError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCatalogEntryNotFound):
		respondError(c, http.StatusNotFound, "目录条目不存在")
	case errors.Is(err, service.ErrCatalogInvalidSlug):
		respondError(c, http.StatusBadRequest, "slug 只能包含小写字母、数字与中划线")
	case errors.Is(err, service.ErrHabitInvalidCadence):
		respondError(c, http.StatusBadRequest, "频率配置无效")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
