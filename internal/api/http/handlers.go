package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/pulselabs/linkpulse/internal/database"
	"github.com/pulselabs/linkpulse/internal/models"
	"github.com/pulselabs/linkpulse/internal/service"
	"github.com/pulselabs/linkpulse/internal/shortcode"
	"github.com/pulselabs/linkpulse/pkg/response"
)

// handlePing handles health check requests to ensure the server is running.
func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

// linkRequest represents the request payload for shortening a URL.
type linkRequest struct {
	URL         string     `json:"url" validate:"required,url"`
	Owner       string     `json:"owner" validate:"omitempty,max=64"`
	Password    string     `json:"password" validate:"omitempty,max=72"`
	ExpiresAt   *time.Time `json:"expires_at"`
	CustomAlias string     `json:"custom_alias" validate:"omitempty,min=3,max=32"`
}

// linkResponse represents the response payload for a link operation.
type linkResponse struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	Destination string     `json:"destination"`
	Owner       string     `json:"owner"`
	Protected   bool       `json:"protected"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ClickCount  int64      `json:"click_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// toLinkResponse converts a link model from the business layer into a response payload.
// The password hash never leaves the server; only the protected flag does.
func toLinkResponse(link *models.Link) linkResponse {
	return linkResponse{
		ID:          link.ID,
		Code:        link.Code,
		Destination: link.Destination,
		Owner:       link.Owner,
		Protected:   link.Protected(),
		ExpiresAt:   link.ExpiresAt,
		ClickCount:  link.ClickCount,
		CreatedAt:   link.CreatedAt,
		UpdatedAt:   link.UpdatedAt,
	}
}

// wantsJSON reports whether the client asked for a structured payload instead
// of a transport redirect.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// clientIP returns the address visit records are attributed to. Proxy chains
// put the originating client in X-Forwarded-For.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

// handleCreateLink handles POST requests to shorten a URL.
//
// The request must contain a valid URL and may carry an owner, a password,
// an expiration time and a custom alias. The handler validates the input,
// calls the link service, and returns the stored link with its short code.
func handleCreateLink(svc LinkService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleCreateLink"
	const successMsg = "The link has been shortened successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req linkRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ErrorResponse("The expiration time must be in the future."))
			return
		}

		link, err := svc.CreateLink(r.Context(), service.CreateLinkParams{
			Destination: req.URL,
			Owner:       req.Owner,
			Password:    req.Password,
			ExpiresAt:   req.ExpiresAt,
			CustomAlias: req.CustomAlias,
		})
		if err != nil {
			if errors.Is(err, shortcode.ErrAliasTaken) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.ErrorResponse("The custom alias is already in use."))
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toLinkResponse(link)))
	}
}

// redirectResponse is the structured form of a granted resolution, returned
// when the client negotiates application/json instead of following a redirect.
type redirectResponse struct {
	Destination string `json:"destination"`
}

// handleRedirect handles GET requests on short codes.
//
// A granted resolution becomes a 302 to the destination, or a structured
// payload when the client sends Accept: application/json. Denied resolutions
// map to 404 (unknown code), 410 (expired), and 401 (missing or wrong
// password); interactive clients missing a password are sent to the gate
// page instead of receiving a 401.
func handleRedirect(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleRedirect"
	const successMsg = "The short code was successfully resolved."

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		password := r.URL.Query().Get("password")

		outcome, err := svc.Resolve(r.Context(), code, password, clientIP(r), r.UserAgent())
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		switch outcome.Status {
		case service.ResolveNotFound:
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.ResourceNotFoundResponse)

		case service.ResolveGone:
			render.Status(r, http.StatusGone)
			render.JSON(w, r, response.ErrorResponse("The link has expired."))

		case service.ResolveNeedsPassword:
			// Without a configured gate URL there is nowhere to send an
			// interactive client, so both paths get the 401.
			if wantsJSON(r) || outcome.GateRedirectTarget == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.ErrorResponse("A password is required to access this link."))
				return
			}

			http.Redirect(w, r, outcome.GateRedirectTarget, http.StatusFound)

		case service.ResolveUnauthorized:
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.ErrorResponse("The provided password is incorrect."))

		case service.ResolveSuccess:
			if wantsJSON(r) {
				render.Status(r, http.StatusOK)
				render.JSON(w, r, response.SuccessResponse(successMsg, redirectResponse{
					Destination: outcome.Destination,
				}))
				return
			}

			http.Redirect(w, r, outcome.Destination, http.StatusFound)
		}
	}
}

// handleListOwnerLinks handles GET requests to list every link registered
// under an owner, newest first.
func handleListOwnerLinks(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleListOwnerLinks"
	const successMsg = "The links were successfully retrieved."

	return func(w http.ResponseWriter, r *http.Request) {
		owner := chi.URLParam(r, "owner")

		links, err := svc.ListLinksForOwner(r.Context(), owner)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		data := make([]linkResponse, 0, len(links))
		for _, link := range links {
			data = append(data, toLinkResponse(link))
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, data))
	}
}

// handleGetAnalytics handles GET requests to retrieve the aggregated visit
// analytics for a link.
//
// The handler returns the click total with per-country, per-OS and
// per-browser breakdowns and a daily timeline, or a 404 error if the link
// doesn't exist. Expired links still report their analytics.
func handleGetAnalytics(svc LinkService) http.HandlerFunc {
	const op = "api.http.handleGetAnalytics"
	const successMsg = "The link analytics retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		summary, err := svc.GetAnalytics(r.Context(), code)
		if err != nil {
			if errors.Is(err, database.ErrLinkNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, summary))
	}
}
