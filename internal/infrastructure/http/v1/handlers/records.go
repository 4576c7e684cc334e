package handlers

import (
	"github.com/Masterminds/squirrel"
	"github.com/gin-gonic/gin"

	"tombstone/internal/core/apperror"
	"tombstone/internal/infrastructure/http/v1/dto"
	"tombstone/internal/softdelete"
)

// RecordsHandler exposes the soft delete lifecycle of every registered type.
type RecordsHandler struct {
	*BaseHandler
	engine *softdelete.Engine
}

// NewRecordsHandler creates a records handler.
func NewRecordsHandler(base *BaseHandler, engine *softdelete.Engine) *RecordsHandler {
	return &RecordsHandler{BaseHandler: base, engine: engine}
}

// RegisterRoutes registers record endpoints on rg.
func (h *RecordsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/types", h.Types)

	records := rg.Group("/records/:type")
	records.GET("", h.List)
	records.GET("/:id", h.Get)
	records.DELETE("/:id", h.Destroy)
	records.DELETE("/:id/permanent", h.ReallyDestroy)
	records.POST("/restore", h.Restore)
}

func (h *RecordsHandler) respond(rec softdelete.Entity) dto.RecordResponse {
	return dto.RecordResponse{
		Type:    rec.EntityType(),
		Deleted: h.engine.IsDeleted(rec),
		Record:  rec,
	}
}

// Types lists registered types with their enrollment.
// GET /types
func (h *RecordsHandler) Types(c *gin.Context) {
	reg := h.engine.Registry()
	reg.ResolveAll(c.Request.Context())

	names := reg.Types()
	out := make([]dto.TypeStatus, 0, len(names))
	for _, name := range names {
		desc, err := reg.Descriptor(name)
		if err != nil {
			h.Error(c, err)
			return
		}
		out = append(out, dto.TypeStatus{
			Name:          desc.Name,
			Table:         desc.Table,
			FlagColumn:    desc.FlagColumn,
			Sentinel:      desc.Sentinel.String(),
			Participation: reg.Participation(name).String(),
		})
	}
	h.OK(c, out)
}

// List returns records of a type under the requested scope.
// GET /records/:type?scope=active|with_deleted|only_deleted&limit=N
func (h *RecordsHandler) List(c *gin.Context) {
	var q dto.ListRecordsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Defaults()

	ctx := c.Request.Context()
	typeName := c.Param("type")
	limit := uint64(q.Limit)

	var (
		rows []softdelete.Entity
		err  error
	)
	switch q.Scope {
	case dto.ScopeWithDeleted:
		rows, err = h.engine.WithDeleted(ctx, typeName, nil, limit)
	case dto.ScopeOnlyDeleted:
		rows, err = h.engine.OnlyDeleted(ctx, typeName, nil, limit)
	default:
		rows, err = h.engine.Query(ctx, typeName, nil, limit)
	}
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.RecordResponse, 0, len(rows))
	for _, rec := range rows {
		items = append(items, h.respond(rec))
	}
	h.OK(c, dto.ListResponse{Items: items, Scope: q.Scope, Count: len(items), Limit: q.Limit})
}

// Get returns one active record.
// GET /records/:type/:id
func (h *RecordsHandler) Get(c *gin.Context) {
	recID, ok := h.ParseID(c)
	if !ok {
		return
	}
	rec, err := h.engine.Find(c.Request.Context(), c.Param("type"), recID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, h.respond(rec))
}

// Destroy soft-deletes an active record together with its dependents.
// DELETE /records/:type/:id
func (h *RecordsHandler) Destroy(c *gin.Context) {
	recID, ok := h.ParseID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	typeName := c.Param("type")

	rec, err := h.engine.Find(ctx, typeName, recID)
	if err != nil {
		h.Error(c, err)
		return
	}
	done, err := h.engine.Destroy(ctx, rec)
	if err != nil {
		h.Error(c, err)
		return
	}
	if !done {
		h.Error(c, apperror.NewTransitionHalted(typeName, string(softdelete.EventDestroy)))
		return
	}
	h.OK(c, dto.TransitionResponse{Type: typeName, ID: recID.String(), Event: string(softdelete.EventDestroy)})
}

// ReallyDestroy permanently removes a record, active or soft-deleted.
// DELETE /records/:type/:id/permanent
func (h *RecordsHandler) ReallyDestroy(c *gin.Context) {
	recID, ok := h.ParseID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	typeName := c.Param("type")

	rows, err := h.engine.WithDeleted(ctx, typeName, squirrel.Eq{softdelete.DefaultKeyColumn: recID}, 1)
	if err != nil {
		h.Error(c, err)
		return
	}
	if len(rows) == 0 {
		h.Error(c, apperror.NewNotFound(typeName, recID.String()))
		return
	}

	done, err := h.engine.ReallyDestroy(ctx, rows[0])
	if err != nil {
		h.Error(c, err)
		return
	}
	if !done {
		h.Error(c, apperror.NewTransitionHalted(typeName, string(softdelete.EventRealDestroy)))
		return
	}
	h.OK(c, dto.TransitionResponse{Type: typeName, ID: recID.String(), Event: string(softdelete.EventRealDestroy)})
}

// Restore restores soft-deleted records by id. Fails as a whole when any
// id has no soft-deleted record.
// POST /records/:type/restore
func (h *RecordsHandler) Restore(c *gin.Context) {
	var req dto.RestoreRequest
	if !h.BindJSON(c, &req) {
		return
	}

	restored, err := h.engine.RestoreByIDs(c.Request.Context(), c.Param("type"),
		softdelete.RestoreOptions{Recursive: req.Recursive}, req.IDs)
	if err != nil {
		h.Error(c, err)
		return
	}

	out := make([]dto.RecordResponse, 0, len(restored))
	for _, rec := range restored {
		out = append(out, h.respond(rec))
	}
	h.OK(c, dto.RestoreResponse{Restored: out})
}
