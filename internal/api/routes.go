package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dnt-protocol/dnt-staking-engine/internal/services"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
)

type stakeRequest struct {
	Asset    types.AssetKind    `json:"asset,omitempty"`
	Quantity uint64             `json:"quantity,omitempty"`
	Deposits []services.Deposit `json:"deposits,omitempty"`
}

// deposits accepts either a single asset and quantity or a deposit list.
func (req *stakeRequest) deposits() ([]services.Deposit, error) {
	if len(req.Deposits) > 0 {
		if req.Asset != "" || req.Quantity != 0 {
			return nil, types.NewInvalidParameterError("use either asset and quantity or deposits")
		}
		return req.Deposits, nil
	}
	return []services.Deposit{{Asset: req.Asset, Quantity: req.Quantity}}, nil
}

type unstakeRequest struct {
	Quantity uint64 `json:"quantity"`
}

func (h *Handler) getGlobalState(r *http.Request) (*result, error) {
	state, err := h.svc.GetGlobalState(r.Context())
	if err != nil {
		return nil, err
	}
	return &result{Data: state}, nil
}

func (h *Handler) getAccount(r *http.Request) (*result, error) {
	account, err := h.svc.GetUserAccount(r.Context(), chi.URLParam(r, "principal"))
	if err != nil {
		return nil, err
	}
	return &result{Data: account}, nil
}

func (h *Handler) getLiquidations(r *http.Request) (*result, error) {
	limit, err := h.parseLimit(r)
	if err != nil {
		return nil, err
	}
	records, err := h.svc.GetLiquidations(r.Context(), r.URL.Query().Get("principal"), limit)
	if err != nil {
		return nil, err
	}
	return &result{Data: records}, nil
}

func (h *Handler) getGovernanceUpdates(r *http.Request) (*result, error) {
	limit, err := h.parseLimit(r)
	if err != nil {
		return nil, err
	}
	updates, err := h.governance.History(r.Context(), limit)
	if err != nil {
		return nil, err
	}
	return &result{Data: updates}, nil
}

func (h *Handler) stake(r *http.Request) (*result, error) {
	principal, err := principalFromHeader(r)
	if err != nil {
		return nil, err
	}
	var req stakeRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	deposits, err := req.deposits()
	if err != nil {
		return nil, err
	}

	res, err := h.svc.StakeBatch(r.Context(), principal, deposits)
	if err != nil {
		return nil, err
	}
	return &result{Data: res}, nil
}

func (h *Handler) unstake(r *http.Request) (*result, error) {
	principal, err := principalFromHeader(r)
	if err != nil {
		return nil, err
	}
	var req unstakeRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}

	res, err := h.svc.Unstake(r.Context(), principal, req.Quantity)
	if err != nil {
		return nil, err
	}
	return &result{Data: res}, nil
}

func (h *Handler) settle(r *http.Request) (*result, error) {
	principal, err := principalFromHeader(r)
	if err != nil {
		return nil, err
	}
	res, err := h.svc.Settle(r.Context(), principal)
	if err != nil {
		return nil, err
	}
	return &result{Data: res}, nil
}

func (h *Handler) distributeRewards(r *http.Request) (*result, error) {
	report, err := h.svc.DistributeRewards(r.Context())
	if err != nil {
		return nil, err
	}
	return &result{Data: report}, nil
}

func (h *Handler) evaluate(r *http.Request) (*result, error) {
	report, err := h.svc.Evaluate(r.Context())
	if err != nil {
		return nil, err
	}
	return &result{Data: report}, nil
}

func (h *Handler) liquidateLosses(r *http.Request) (*result, error) {
	report, err := h.svc.LiquidateLosses(r.Context())
	if err != nil {
		return nil, err
	}
	return &result{Data: report}, nil
}

func (h *Handler) rebalance(r *http.Request) (*result, error) {
	state, err := h.svc.RecordRebalance(r.Context())
	if err != nil {
		return nil, err
	}
	return &result{Data: state}, nil
}
