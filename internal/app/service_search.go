package app

import (
	"context"
	"net/http"

	"caseload/api/internal/search"
)

func (s *Service) Search(ctx context.Context, therapistID int64, text, filterType string, limit, offset int) (search.Response, error) {
	switch filterType {
	case "", string(search.ResultClient), string(search.ResultSession):
	default:
		return search.Response{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid type filter", nil)
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{
		Text:        text,
		TherapistID: therapistID,
		FilterType:  search.ResultType(filterType),
		Limit:       limit,
		Offset:      offset,
	}), nil
}
