package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campusbid/auction-service/internal/auction"
	"github.com/campusbid/auction-service/internal/middleware"
	"github.com/campusbid/auction-service/internal/model"
	"github.com/campusbid/auction-service/internal/repository"
)

// AuctionHandler serves listing browsing, auction creation, bidding
// and early ending.
type AuctionHandler struct {
	Svc      *auction.Service
	Settler  *auction.Settler
	Auctions *repository.AuctionRepo
	Bids     *repository.BidRepo

	jwtSecret string
}

func NewAuctionHandler(svc *auction.Service, settler *auction.Settler,
	auctions *repository.AuctionRepo, bids *repository.BidRepo, jwtSecret string) *AuctionHandler {
	return &AuctionHandler{Svc: svc, Settler: settler, Auctions: auctions, Bids: bids, jwtSecret: jwtSecret}
}

// domainErr maps core auction errors onto HTTP responses. Bid
// rejections carry min_bid so clients can correct without refetching.
func domainErr(c echo.Context, err error) error {
	var tooLow *auction.BidTooLowError
	switch {
	case errors.As(err, &tooLow):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": tooLow.Error(), "min_bid": tooLow.MinBid})
	case errors.Is(err, auction.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "auction not found"})
	case errors.Is(err, auction.ErrItemNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
	case errors.Is(err, auction.ErrNotActive):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "auction is not active"})
	case errors.Is(err, auction.ErrEnded):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "auction has ended"})
	case errors.Is(err, auction.ErrSelfBid):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "you cannot bid on your own auction"})
	case errors.Is(err, auction.ErrInvalidPrice):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starting price must be positive"})
	case errors.Is(err, auction.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, auction.ErrItemUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "item is not available for auction"})
	case errors.Is(err, auction.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "concurrent update, please retry"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// wholeCents rejects amounts with sub-cent precision before they
// reach DECIMAL(10,2) columns.
func wholeCents(v float64) bool {
	return math.Round(v*100)/100 == v
}

type createAuctionReq struct {
	ItemID        string   `json:"item_id"`
	StartingPrice float64  `json:"starting_price"`
	ReservePrice  *float64 `json:"reserve_price"`
	MinIncrement  float64  `json:"min_bid_increment"`
	EndTime       string   `json:"end_time"` // RFC 3339
}

// Create opens bidding on one of the caller's items.
func (h *AuctionHandler) Create(c echo.Context) error {
	p, _ := middleware.Caller(c)

	var req createAuctionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ItemID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "item_id is required"})
	}
	if req.StartingPrice <= 0 || !wholeCents(req.StartingPrice) || !wholeCents(req.MinIncrement) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "prices must be positive with at most two decimals"})
	}
	if req.ReservePrice != nil && (*req.ReservePrice < req.StartingPrice || !wholeCents(*req.ReservePrice)) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reserve_price must be at least starting_price with at most two decimals"})
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_time must be RFC 3339"})
	}
	if !end.After(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_time must be in the future"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	a, err := h.Svc.CreateAuction(ctx, p, auction.CreateParams{
		ItemID:        req.ItemID,
		StartingPrice: req.StartingPrice,
		ReservePrice:  req.ReservePrice,
		MinIncrement:  req.MinIncrement,
		EndTime:       end.UTC(),
	})
	if err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// List returns a paginated browse page of auctions.
// Query: status (comma-separated), sort (ending_soon | newest |
// most_bids | price_low | price_high), limit, offset.
func (h *AuctionHandler) List(c echo.Context) error {
	f := repository.ListFilter{Sort: c.QueryParam("sort")}
	if s := c.QueryParam("status"); s != "" {
		for _, st := range strings.Split(s, ",") {
			if st = strings.TrimSpace(st); st != "" {
				f.Statuses = append(f.Statuses, st)
			}
		}
	} else {
		f.Statuses = []string{model.AuctionActive}
	}
	f.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	f.Offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if f.Offset < 0 {
		f.Offset = 0
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	page, total, err := h.Auctions.List(ctx, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list auctions failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"auctions": page, "total": total})
}

// Detail returns one auction with its full bid history. The route is
// public; a bearer token is honoured when present so the winner of an
// ended auction sees the seller's contact block.
func (h *AuctionHandler) Detail(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	d, err := h.Auctions.GetDetail(ctx, h.Bids, c.Param("id"))
	if err != nil {
		return domainErr(c, err)
	}

	if raw := middleware.BearerToken(c); raw != "" {
		if p, err := middleware.ParsePrincipal(h.jwtSecret, raw); err == nil {
			if d.Status == model.AuctionEnded && d.WinnerID != nil && *d.WinnerID == p.ID {
				d.RevealContact()
			}
		}
	}
	return c.JSON(http.StatusOK, d)
}

// ListBids returns the bid history of one auction, highest first.
func (h *AuctionHandler) ListBids(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	id := c.Param("id")
	if _, err := h.Auctions.GetByID(ctx, id); err != nil {
		return domainErr(c, err)
	}
	bids, err := h.Bids.ListByAuction(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list bids failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bids": bids})
}

type placeBidReq struct {
	Amount float64 `json:"amount"`
}

// PlaceBid submits a bid on an active auction.
func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	p, _ := middleware.Caller(c)

	var req placeBidReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Amount <= 0 || !wholeCents(req.Amount) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be positive with at most two decimals"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	bid, a, err := h.Svc.PlaceBid(ctx, c.Param("id"), p, req.Amount)
	if err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"bid": bid,
		"auction": echo.Map{
			"current_price": a.CurrentPrice,
			"total_bids":    a.TotalBids,
			"end_time":      a.EndTime,
		},
	})
}

// End settles an auction before its deadline. Allowed to the seller
// who owns it or an admin; the outcome is identical to a deadline
// settlement.
func (h *AuctionHandler) End(c echo.Context) error {
	p, _ := middleware.Caller(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	out, err := h.Settler.EndNow(ctx, c.Param("id"), p)
	if err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"auction_id":      out.AuctionID,
		"winner_id":       out.WinnerID,
		"winner_name":     out.WinnerName,
		"final_price":     out.FinalPrice,
		"already_settled": out.AlreadySettled,
	})
}

// MyBids returns the caller's bids across all auctions, newest first.
func (h *AuctionHandler) MyBids(c echo.Context) error {
	p, _ := middleware.Caller(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	bids, err := h.Bids.ListByBidder(ctx, p.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list bids failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bids": bids})
}

// MyAuctions returns auctions the caller is selling.
func (h *AuctionHandler) MyAuctions(c echo.Context) error {
	p, _ := middleware.Caller(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	page, err := h.Auctions.BySeller(ctx, p.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list auctions failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"auctions": page})
}
