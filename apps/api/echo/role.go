package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/role"
)

type roleApi struct {
	svc      *role.Service
	validate *validator.Validate
}

func registerRoleAPI(g *echo.Group, deps ServerDeps) {
	api := roleApi{
		svc:      deps.RoleSvc,
		validate: deps.Validate,
	}

	rg := g.Group("/roles")
	rg.GET("", api.query, permissionMiddleware("roles.read"))
	rg.POST("", api.create, permissionMiddleware("roles.create"))
	rg.PUT("", api.initTemplateSet, permissionMiddleware("roles.create"))
	rg.GET("/:id", api.retrieve, permissionMiddleware("roles.read"))
	rg.PATCH("/:id", api.update, permissionMiddleware("roles.create"))
}

// Handlers

func (api *roleApi) query(ctx echo.Context) error {
	list, err := api.svc.Query(ctx.Request().Context(), ctx.Param("tid"))
	if err != nil {
		return errors.Wrap(err, "querying roles")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *roleApi) create(ctx echo.Context) error {
	var data role.NewRole
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRole")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	info, err := api.svc.Create(ctx.Request().Context(), ctx.Param("tid"), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating role")
	}
	return ctx.JSON(http.StatusCreated, info)
}

func (api *roleApi) initTemplateSet(ctx echo.Context) error {
	var data InitTemplateSetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to InitTemplateSetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	res, err := api.svc.InitTemplateSet(ctx.Request().Context(), ctx.Param("tid"), data.TemplateSetName, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "initializing template set")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *roleApi) retrieve(ctx echo.Context) error {
	info, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("tid"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding role")
	}
	return ctx.JSON(http.StatusOK, info)
}

func (api *roleApi) update(ctx echo.Context) error {
	var data role.UpdateRole
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRole")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	info, err := api.svc.Update(ctx.Request().Context(), ctx.Param("tid"), ctx.Param("id"), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "updating role")
	}
	return ctx.JSON(http.StatusOK, info)
}

type InitTemplateSetRequest struct {
	TemplateSetName string `json:"template_set_name" validate:"required"`
}

func (r *InitTemplateSetRequest) Validate(validate *validator.Validate) error {
	if r.TemplateSetName = core.CleanString(r.TemplateSetName, true /* lower */); r.TemplateSetName == "" {
		r.TemplateSetName = role.DefaultTemplateSet
	}
	return validate.Struct(r)
}
