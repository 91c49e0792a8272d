package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"estate-dashboard/internal/backend"
	"estate-dashboard/internal/model"
)

// resource is one backend collection exposed through the generic CRUD routes.
type resource struct {
	label string
	res   *backend.Resource[model.Record]
}

func newResources(c *backend.Client) map[string]*resource {
	return map[string]*resource{
		"listings": {label: "Listing", res: backend.NewResource[model.Record](c, "/property", "properties", "property")},
		"tenants":  {label: "Tenant", res: backend.NewResource[model.Record](c, "/tenant", "tenants", "tenant")},
		"leads":    {label: "Lead", res: backend.NewResource[model.Record](c, "/leads", "leads", "lead")},
		"admins":   {label: "Admin", res: backend.NewResource[model.Record](c, "/user/admin", "admins", "admin")},
	}
}

// resourceScope: reads need "<name>.read", writes need "<name>".
func resourceScope(c echo.Context) string {
	name := c.Param("resource")
	if c.Request().Method == http.MethodGet {
		return name + ".read"
	}
	return name
}

func (h *Handler) knownResource(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := h.resources[c.Param("resource")]; !ok {
			return echo.ErrNotFound
		}
		return next(c)
	}
}

func (h *Handler) resource(c echo.Context) *resource {
	return h.resources[c.Param("resource")]
}

type listQuery struct {
	Page  int    `query:"page" validate:"min=1"`
	Limit int    `query:"limit" validate:"min=1,max=100"`
	Q     string `query:"q"`
	Sort  string `query:"sort"`
	Order string `query:"order" validate:"omitempty,oneof=asc desc"`
}

// ListRecords pages through a collection. A search term pulls the whole
// collection and pages the matches locally.
func (h *Handler) ListRecords(c echo.Context) error {
	q := listQuery{Page: 1, Limit: 10}
	if err := bind(c, &q); err != nil {
		return h.fail(c, err, "Could not load records")
	}
	r := h.resource(c)
	ctx := c.Request().Context()

	if q.Q == "" {
		page, err := r.res.List(ctx, q.Page, q.Limit)
		if err != nil {
			return h.fail(c, err, "Could not load "+r.label+" records")
		}
		backend.Sort(page.Data, q.Sort, q.Order == "desc")
		return c.JSON(http.StatusOK, reply{Data: page})
	}

	all, err := r.res.All(ctx)
	if err != nil {
		return h.fail(c, err, "Could not load "+r.label+" records")
	}
	matched := backend.Filter(all, q.Q)
	backend.Sort(matched, q.Sort, q.Order == "desc")
	return c.JSON(http.StatusOK, reply{Data: paginate(matched, q.Page, q.Limit)})
}

func paginate(recs []model.Record, page, limit int) *model.Page[model.Record] {
	total := len(recs)
	pages := (total + limit - 1) / limit
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	return &model.Page[model.Record]{
		Data:        recs[start:end],
		CurrentPage: page,
		TotalPages:  pages,
		TotalItems:  total,
	}
}

func (h *Handler) GetRecord(c echo.Context) error {
	r := h.resource(c)
	rec, err := r.res.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err, "Could not load "+r.label)
	}
	return c.JSON(http.StatusOK, reply{Data: rec})
}

func (h *Handler) bindRecord(c echo.Context) (model.Record, error) {
	var in model.Record
	// body only; path params would otherwise land in the map
	if err := (&echo.DefaultBinder{}).BindBody(c, &in); err != nil || len(in) == 0 {
		return nil, errMalformed
	}
	delete(in, "_id")
	delete(in, "id")
	return in, nil
}

func (h *Handler) CreateRecord(c echo.Context) error {
	r := h.resource(c)
	in, err := h.bindRecord(c)
	if err != nil {
		return h.fail(c, err, "Could not create "+r.label)
	}
	rec, err := r.res.Create(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, err, "Could not create "+r.label)
	}
	return c.JSON(http.StatusCreated, reply{Data: rec, Notice: model.Success(r.label + " created")})
}

func (h *Handler) UpdateRecord(c echo.Context) error {
	r := h.resource(c)
	in, err := h.bindRecord(c)
	if err != nil {
		return h.fail(c, err, "Could not update "+r.label)
	}
	rec, err := r.res.Update(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return h.fail(c, err, "Could not update "+r.label)
	}
	return c.JSON(http.StatusOK, reply{Data: rec, Notice: model.Success(r.label + " updated")})
}

func (h *Handler) DeleteRecord(c echo.Context) error {
	r := h.resource(c)
	if err := r.res.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err, "Could not delete "+r.label)
	}
	return c.JSON(http.StatusOK, reply{Notice: model.Success(r.label + " deleted")})
}
