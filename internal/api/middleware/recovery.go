package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/seoulmetro/stationinfo/internal/api/models"
)

// Recovery turns a handler panic into a 500 problem. It logs through the
// request-scoped logger installed by Logger. http.ErrAbortHandler is
// re-raised.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(v)
			}

			zerolog.Ctx(r.Context()).Error().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")

			p := models.KindInternal.New(GetRequestID(r.Context()), "an unexpected error occurred")
			p.Instance = r.URL.Path
			p.Write(w)
		}()

		next.ServeHTTP(w, r)
	})
}
