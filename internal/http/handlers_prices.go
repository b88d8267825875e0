package http

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"household/internal/core"
	applog "household/internal/log"
)

type (
	pricesView struct {
		Title  string
		Nav    string
		Types  []core.MeterType
		Form   PriceForm
		Groups []priceGroup
		Error  string
	}

	// priceGroup is the price history of one meter type, newest first.
	priceGroup struct {
		Type   core.MeterType
		Prices []priceRow
	}

	priceRow struct {
		core.UtilityPrice
		Current bool
		Confirm string
	}
)

// groupPrices buckets prices per priced meter type and marks the ones valid today.
func groupPrices(prices []core.UtilityPrice, today core.Date) []priceGroup {
	byType := make(map[core.MeterType][]core.UtilityPrice)
	for _, p := range prices {
		byType[p.MeterType] = append(byType[p.MeterType], p)
	}

	groups := make([]priceGroup, 0, len(core.PricedMeterTypes()))
	for _, t := range core.PricedMeterTypes() {
		items := byType[t]
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].ValidFrom.After(items[j].ValidFrom)
		})
		rows := make([]priceRow, 0, len(items))
		for _, p := range items {
			rows = append(rows, priceRow{
				UtilityPrice: p,
				Current:      p.IsCurrent(today),
				Confirm:      fmt.Sprintf(MsgDeleteConfirm, core.FormatEuro(p.PricePerUnit), t.Label()),
			})
		}
		groups = append(groups, priceGroup{Type: t, Prices: rows})
	}
	return groups
}

func (s *Server) priceGroups(ctx context.Context) ([]priceGroup, string) {
	ctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()

	prices, err := s.backend.ListPrices(ctx)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to list prices",
			applog.FieldOperation, applog.OpList,
			applog.FieldError, err.Error())
		return groupPrices(nil, core.Today()), core.UserMessage(core.ResourcePrices, err)
	}
	return groupPrices(prices, core.Today()), ""
}

func (s *Server) handlePricesPage(w http.ResponseWriter, r *http.Request) {
	groups, errMsg := s.priceGroups(r.Context())
	preselected := ParseMeterTypeParam(r.URL.Query().Get("type"), core.Electricity)
	if !preselected.IsPriced() {
		preselected = core.Electricity
	}
	s.render(w, r, http.StatusOK, "prices_page", pricesView{
		Title:  "Preise",
		Nav:    "prices",
		Types:  core.PricedMeterTypes(),
		Form:   NewPriceForm(preselected),
		Groups: groups,
		Error:  errMsg,
	})
}

// handlePriceList returns the grouped price tables partial.
func (s *Server) handlePriceList(w http.ResponseWriter, r *http.Request) {
	groups, errMsg := s.priceGroups(r.Context())
	s.render(w, r, http.StatusOK, "price_list", pricesView{Groups: groups, Error: errMsg})
}

func (s *Server) handleCreatePrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Ungültiges Anfrageformat").Write(w)
		return
	}

	view := pricesView{Types: core.PricedMeterTypes(), Form: ParsePriceForm(parser)}
	req, ok := view.Form.Validate()
	if !ok {
		logger.InfoContext(ctx, "Price form rejected",
			applog.FieldOperation, applog.OpCreate,
			"fields", len(view.Form.Errors))
		s.render(w, r, http.StatusUnprocessableEntity, "price_form", view)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()
	saved, err := s.backend.CreatePrice(cctx, req)
	if err != nil {
		applog.NewStructuredLogger(logger).LogError(ctx, "Failed to create price", err,
			applog.ComponentPrices, applog.OpCreate, nil)
		s.renderWithTriggers(w, r, http.StatusUnprocessableEntity, "price_form", view,
			NewHTMXResponse().TriggerErrorNotification(core.UserMessage(core.ResourcePrices, err)))
		return
	}

	applog.NewStructuredLogger(logger).LogPriceCreated(ctx, saved)

	view.Form = NewPriceForm(saved.MeterType)
	s.renderWithTriggers(w, r, http.StatusOK, "price_form", view,
		NewHTMXResponse().
			TriggerPriceCreated(saved.MeterType).
			TriggerFormReset().
			TriggerSuccessNotification(MsgPriceCreated))
}

// handleDeletePrice removes a price and answers with the refreshed list.
func (s *Server) handleDeletePrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		BadRequestError("Ungültige Preis-ID").
			TriggerErrorNotification("Ungültige Preis-ID").
			Write(w)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, backendTimeout)
	err = s.backend.DeletePrice(cctx, id)
	cancel()

	builder := NewHTMXResponse()
	if err != nil {
		applog.NewStructuredLogger(logger).LogError(ctx, "Failed to delete price", err,
			applog.ComponentPrices, applog.OpDelete, applog.LogFields{applog.FieldPriceID: id})
		builder.TriggerErrorNotification(core.UserMessage(core.ResourcePrices, err))
	} else {
		logger.WithComponent(applog.ComponentPrices).InfoContext(ctx, "Utility price deleted",
			applog.FieldOperation, applog.OpDelete,
			applog.FieldPriceID, id)
		builder.TriggerPriceDeleted(id).TriggerSuccessNotification(MsgPriceDeleted)
	}

	groups, errMsg := s.priceGroups(ctx)
	s.renderWithTriggers(w, r, http.StatusOK, "price_list", pricesView{Groups: groups, Error: errMsg}, builder)
}
