package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/Lelouch-Britannia/KubePlayground/cmd/playgroundd/handlers"
	httptestutil "github.com/Lelouch-Britannia/KubePlayground/internal/testutils/http"
	scopemock "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/scope/mock"
)

func TestDeleteScopeHandler(t *testing.T) {
	t.Run("the owner's scope is reset", func(t *testing.T) {
		scopes := scopemock.New()
		resetOwner := ""
		scopes.Impl.Reset = func(ctx context.Context, ownerKey string) error {
			resetOwner = ownerKey
			return nil
		}

		e := echo.New()
		ectx, resprec := httptestutil.Delete(e, "/api/scopes/alice/")
		ectx.SetParamNames("ownerKey")
		ectx.SetParamValues("alice")

		testee := handlers.DeleteScopeHandler(scopes, "ownerKey")
		if err := testee(ectx); err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}

		if resprec.Code != http.StatusNoContent {
			t.Errorf("status code = %d, want %d", resprec.Code, http.StatusNoContent)
		}
		if resetOwner != "alice" {
			t.Errorf("reset owner = %s, want alice", resetOwner)
		}
	})

	t.Run("a reset failure is answered with internal server error", func(t *testing.T) {
		scopes := scopemock.New()
		scopes.Impl.Reset = func(ctx context.Context, ownerKey string) error {
			return errors.New("fake cluster failure")
		}

		e := echo.New()
		ectx, _ := httptestutil.Delete(e, "/api/scopes/alice/")
		ectx.SetParamNames("ownerKey")
		ectx.SetParamValues("alice")

		testee := handlers.DeleteScopeHandler(scopes, "ownerKey")
		err := testee(ectx)
		if code := httpCodeOf(t, err); code != http.StatusInternalServerError {
			t.Errorf("status code = %d, want %d", code, http.StatusInternalServerError)
		}
	})
}
