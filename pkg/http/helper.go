package http

import (
	"net/http"
	"strconv"
	"time"

	"lodgic/pkg/config"
	apperrors "lodgic/pkg/errors"
	"lodgic/pkg/model"
)

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64 = 0
	if s := query.Get("offset"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = int64(v)
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return limit, offset, nil
}

// ExtractDateParam parses a required YYYY-MM-DD query parameter.
func ExtractDateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, apperrors.InvalidInput("missing required parameter: " + name)
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("invalid " + name + " parameter, expected YYYY-MM-DD")
	}
	return d, nil
}

// ExtractOptionalDateParam parses an optional YYYY-MM-DD query parameter.
func ExtractOptionalDateParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid " + name + " parameter, expected YYYY-MM-DD")
	}
	return &d, nil
}

// ExtractActorID reads the collaborator-provided actor identity header.
func ExtractActorID(r *http.Request) (string, error) {
	actorID := r.Header.Get("X-Actor-ID")
	if actorID == "" {
		return "", apperrors.Unauthorized("X-Actor-ID header is required")
	}
	return actorID, nil
}
