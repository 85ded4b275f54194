package middleware

import (
	"net/http"

	apperrors "github.com/duoquiz/duo-server/internal/errors"
	"github.com/duoquiz/duo-server/internal/httputil"
)

func writeError(w http.ResponseWriter, err *apperrors.AppError) {
	httputil.WriteError(w, err)
}
