package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbid/auction-service/internal/auction"
)

func TestDomainErrMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "auction not found", err: auction.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "item not found", err: auction.ErrItemNotFound, wantStatus: http.StatusNotFound},
		{name: "not active", err: auction.ErrNotActive, wantStatus: http.StatusBadRequest},
		{name: "ended", err: auction.ErrEnded, wantStatus: http.StatusBadRequest},
		{name: "self bid", err: auction.ErrSelfBid, wantStatus: http.StatusBadRequest},
		{name: "invalid price", err: auction.ErrInvalidPrice, wantStatus: http.StatusBadRequest},
		{name: "forbidden", err: auction.ErrForbidden, wantStatus: http.StatusForbidden},
		{name: "item unavailable", err: auction.ErrItemUnavailable, wantStatus: http.StatusConflict},
		{name: "lock conflict", err: auction.ErrConflict, wantStatus: http.StatusConflict},
		{name: "wrapped conflict", err: errors.Join(errors.New("ctx"), auction.ErrConflict), wantStatus: http.StatusConflict},
		{name: "unknown fault", err: errors.New("disk on fire"), wantStatus: http.StatusInternalServerError},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			rec := httptest.NewRecorder()

			require.NoError(t, domainErr(e.NewContext(req, rec), tt.err))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestDomainErrBidTooLowCarriesFloor(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()

	err := domainErr(e.NewContext(req, rec), &auction.BidTooLowError{MinBid: 525})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error  string  `json:"error"`
		MinBid float64 `json:"min_bid"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 525.0, body.MinBid)
	assert.NotEmpty(t, body.Error)
}
