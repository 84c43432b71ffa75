package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	binderr "github.com/Lelouch-Britannia/KubePlayground/pkg/api/errors"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/scope"
)

// DeleteScopeHandler tears the owner's scope namespace down.
//
// Resetting an owner with no scope is not an error: either way the
// owner ends up without one.
func DeleteScopeHandler(scopes scope.Manager, ownerKeyKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ownerKey := c.Param(ownerKeyKey)

		if err := scopes.Reset(ctx, ownerKey); err != nil {
			return binderr.InternalServerError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
