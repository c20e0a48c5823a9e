// Package resource serves Alma records over HTTP as repository metadata.
package resource

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"almaconnector/internal/logger"
	apperrors "almaconnector/pkg/errors"
	"almaconnector/pkg/marc"
)

// SearchKeys maps the {type} path segment to the SRU search key.
var SearchKeys = map[string]string{
	"ac_number": "local_control_field_009",
	"mmsid":     "mms_id",
}

type Searcher interface {
	Search(ctx context.Context, searchKey, value string) (*marc.Record, error)
}

// RecordResponse is the body of a successful record lookup.
type RecordResponse struct {
	ID       string        `json:"id"`
	Metadata marc.Metadata `json:"metadata"`
}

type Handler struct {
	searcher Searcher
	logger   logger.Logger
}

func NewHandler(searcher Searcher, log logger.Logger) *Handler {
	return &Handler{searcher: searcher, logger: log}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	alma := router.Group("/alma")
	alma.GET("/:type/:record_id", h.GetRecord)
}

// GetRecord answers GET /alma/{type}/{record_id} with the record's
// metadata.
//
// @Summary      Get an Alma record
// @Description  Search Alma over SRU by AC number or MMS id and return the record as repository metadata
// @Tags         records
// @Produce      json
// @Param        type       path      string  true  "Record id type"  Enums(ac_number, mmsid)
// @Param        record_id  path      string  true  "Record id"
// @Success      200        {object}  RecordResponse
// @Failure      404        {object}  map[string]interface{}
// @Failure      502        {object}  map[string]interface{}
// @Router       /alma/{type}/{record_id} [get]
func (h *Handler) GetRecord(c *gin.Context) {
	searchKey, ok := SearchKeys[c.Param("type")]
	if !ok {
		_ = c.Error(apperrors.ErrNotFound.WithMessagef("unknown record id type %q", c.Param("type")))
		return
	}

	recordID := c.Param("record_id")
	record, err := h.searcher.Search(c.Request.Context(), searchKey, recordID)
	if err != nil {
		h.logger.WarnwCtx(c.Request.Context(), "alma record lookup failed",
			"search_key", searchKey,
			"record_id", recordID,
			"error", err.Error(),
		)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, RecordResponse{
		ID:       record.MMSID(),
		Metadata: record.Metadata(),
	})
}
