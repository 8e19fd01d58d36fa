package kit

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// ErrBadRequest marks a request that could not be decoded.
var ErrBadRequest = errors.New("bad request")

// StatusFunc maps an endpoint error to an HTTP status.
type StatusFunc func(error) int

// HTTPHandler serves an Endpoint over HTTP. decode builds the request from
// the incoming *http.Request; the response is written as JSON. Errors are
// written as {"error": "..."} with the status chosen by status (500 when nil,
// 400 for decode failures).
func HTTPHandler(endpoint Endpoint, decode func(*http.Request) (any, error), status StatusFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := WithTransport(r.Context(), "http")
		ctx = WithRemoteAddr(ctx, r.RemoteAddr)
		if id := r.Header.Get("X-Request-Id"); id != "" {
			ctx = WithRequestID(ctx, id)
		}

		req, err := decode(r)
		if err != nil {
			WriteJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		resp, err := endpoint(ctx, req)
		if err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, ErrBadRequest) {
				code = http.StatusBadRequest
			} else if status != nil {
				code = status(err)
			}
			WriteJSON(w, code, errorBody{Error: err.Error()})
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// DecodeJSONBody decodes the request body into a new T. An empty body
// decodes to the zero T.
func DecodeJSONBody[T any](r *http.Request) (any, error) {
	var v T
	if r.Body == nil {
		return &v, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &v, nil
}

// NoBody decodes nothing.
func NoBody(*http.Request) (any, error) { return nil, nil }

type errorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
