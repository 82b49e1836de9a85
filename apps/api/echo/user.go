package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/user"
)

type userApi struct {
	svc      *user.Service
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, deps ServerDeps) {
	api := userApi{
		svc:      deps.UserSvc,
		validate: deps.Validate,
	}

	ug := g.Group("/users/:id")
	ug.POST("/role", api.assignRole, permissionMiddleware("roles.assign"))
	ug.PUT("", api.update, permissionMiddleware("users.update"))
	ug.GET("", api.retrieve, permissionMiddleware("users.read"))
}

// Handlers

func (api *userApi) assignRole(ctx echo.Context) error {
	var data user.AssignRole
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignRole")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	assigned, err := api.svc.AssignRole(ctx.Request().Context(), ctx.Param("tid"), ctx.Param("id"), data.RoleID, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "assigning role")
	}
	return ctx.JSON(http.StatusOK, assigned)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, err := api.svc.GetTenantUser(ctx.Request().Context(), ctx.Param("tid"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user")
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err = data.Validate(usr, api.validate); err != nil {
		return err
	}

	usr, err = api.svc.Update(ctx.Request().Context(), ctx.Param("tid"), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := api.svc.GetTenantUser(ctx.Request().Context(), ctx.Param("tid"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user")
	}
	return ctx.JSON(http.StatusOK, usr)
}
