package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vocdoni/lootery-node/lootery"
	"github.com/vocdoni/lootery-node/lootery/pickset"
)

// ping answers the health check.
func (a *API) ping(w http.ResponseWriter, _ *http.Request) {
	httpWriteOK(w)
}

// currentGame returns the current game pointer together with its round.
// GET /games/current
func (a *API) currentGame(w http.ResponseWriter, _ *http.Request) {
	game, err := a.engine.CurrentGame()
	if err != nil {
		errorFromEngine(err).Write(w)
		return
	}
	a.writeGame(w, game.ID, &game.State)
}

// game returns a past or current round by its id.
// GET /games/{gameId}
func (a *API) game(w http.ResponseWriter, r *http.Request) {
	gameID, err := parseUint64Param(r, GameIDURLParam)
	if err != nil {
		ErrMalformedParam.Withf("invalid game id: %v", err).Write(w)
		return
	}
	a.writeGame(w, gameID, nil)
}

func (a *API) writeGame(w http.ResponseWriter, gameID uint64, state *lootery.State) {
	round, err := a.engine.Round(gameID)
	if err != nil {
		errorFromEngineResource(err, ErrGameNotFound).Write(w)
		return
	}
	resp := GameResponse{
		ID:          gameID,
		StartedAt:   round.StartedAt,
		TicketsSold: round.TicketsSold,
	}
	if state != nil {
		resp.State = state.String()
	}
	if round.IsFinalized() {
		resp.WinningPicks = pickset.Decode(round.WinningPickID, int(a.numPicks))
	}
	httpWriteJSON(w, resp)
}

// ticket returns a single ticket's record.
// GET /tickets/{ticketId}
func (a *API) ticket(w http.ResponseWriter, r *http.Request) {
	ticketID, err := parseUint64Param(r, TicketIDURLParam)
	if err != nil {
		ErrMalformedParam.Withf("invalid ticket id: %v", err).Write(w)
		return
	}
	ticket, err := a.engine.Ticket(ticketID)
	if err != nil {
		errorFromEngineResource(err, ErrTicketNotFound).Write(w)
		return
	}
	httpWriteJSON(w, TicketResponse{
		ID:     ticketID,
		GameID: ticket.GameID,
		Picks:  pickset.Decode(ticket.PickID, int(a.numPicks)),
	})
}

// accounting returns the jackpot/unclaimed/fees snapshot.
// GET /accounting
func (a *API) accounting(w http.ResponseWriter, _ *http.Request) {
	acct, err := a.engine.Accounting()
	if err != nil {
		errorFromEngine(err).Write(w)
		return
	}
	httpWriteJSON(w, AccountingResponse{
		Jackpot:              acct.Jackpot,
		UnclaimedPayouts:     acct.UnclaimedPayouts,
		AccruedCommunityFees: acct.AccruedCommunityFees,
	})
}

// ticketInputsFromRequest decodes and validates the recipient addresses in
// req, returning the []lootery.TicketInput the engine expects.
func ticketInputsFromRequest(req []TicketInputRequest) ([]lootery.TicketInput, error) {
	out := make([]lootery.TicketInput, len(req))
	for i, t := range req {
		if !common.IsHexAddress(t.Recipient) {
			return nil, fmt.Errorf("ticket %d: malformed recipient address", i)
		}
		out[i] = lootery.TicketInput{
			Recipient: common.HexToAddress(t.Recipient),
			Picks:     t.Picks,
		}
	}
	return out, nil
}

// purchase sells tickets to the caller.
// POST /tickets/purchase
func (a *API) purchase(w http.ResponseWriter, r *http.Request) {
	req := &PurchaseRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	msg, err := json.Marshal(req.Tickets)
	if err != nil {
		ErrMalformedBody.Withf("could not encode tickets for verification: %v", err).Write(w)
		return
	}
	caller, err := verifyCaller(msg, req.Caller, req.Signature)
	if err != nil {
		ErrInvalidSignature.WithErr(err).Write(w)
		return
	}
	tickets, err := ticketInputsFromRequest(req.Tickets)
	if err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	ids, err := a.engine.Purchase(r.Context(), caller, tickets)
	if err != nil {
		errorFromEngine(err).Write(w)
		return
	}
	httpWriteJSON(w, PurchaseResponse{TicketIDs: ids})
}

// ownerPick mints tickets without payment, restricted to the owner.
// POST /tickets/owner-pick
func (a *API) ownerPick(w http.ResponseWriter, r *http.Request) {
	req := &PurchaseRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	msg, err := json.Marshal(req.Tickets)
	if err != nil {
		ErrMalformedBody.Withf("could not encode tickets for verification: %v", err).Write(w)
		return
	}
	caller, err := verifyCaller(msg, req.Caller, req.Signature)
	if err != nil {
		ErrInvalidSignature.WithErr(err).Write(w)
		return
	}
	tickets, err := ticketInputsFromRequest(req.Tickets)
	if err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	ids, err := a.engine.OwnerPick(r.Context(), caller, tickets)
	if err != nil {
		errorFromEngine(err).Write(w)
		return
	}
	httpWriteJSON(w, PurchaseResponse{TicketIDs: ids})
}

// seedJackpot credits value directly to the jackpot.
// POST /jackpot/seed
func (a *API) seedJackpot(w http.ResponseWriter, r *http.Request) {
	req := &SeedJackpotRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if req.Value == nil {
		ErrMalformedBody.Withf("missing value").Write(w)
		return
	}
	caller, err := verifyCaller([]byte(req.Value.String()), req.Caller, req.Signature)
	if err != nil {
		ErrInvalidSignature.WithErr(err).Write(w)
		return
	}
	if err := a.engine.SeedJackpot(r.Context(), caller, req.Value); err != nil {
		errorFromEngine(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// draw advances the round. It carries no caller check of its own: anyone
// (typically a keeper bot) may call it once the game period has elapsed.
// POST /draw
func (a *API) draw(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Draw(r.Context()); err != nil {
		errorFromEngine(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// randomnessCallback is invoked by the randomness oracle once a requested
// draw is ready.
// POST /draw/randomness
func (a *API) randomnessCallback(w http.ResponseWriter, r *http.Request) {
	req := &RandomnessCallbackRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if len(req.RequestID) != 32 {
		ErrMalformedBody.Withf("requestId must be 32 bytes").Write(w)
		return
	}
	msg, err := json.Marshal(req.Words)
	if err != nil {
		ErrMalformedBody.Withf("could not encode words for verification: %v", err).Write(w)
		return
	}
	caller, err := verifyCaller(msg, req.Caller, req.Signature)
	if err != nil {
		ErrInvalidSignature.WithErr(err).Write(w)
		return
	}
	var requestID [32]byte
	copy(requestID[:], req.RequestID)
	if err := a.engine.OnRandomness(r.Context(), caller, requestID, req.Words); err != nil {
		errorFromEngine(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// claim pays out a ticket.
// POST /tickets/{ticketId}/claim
func (a *API) claim(w http.ResponseWriter, r *http.Request) {
	ticketID, err := parseUint64Param(r, TicketIDURLParam)
	if err != nil {
		ErrMalformedParam.Withf("invalid ticket id: %v", err).Write(w)
		return
	}
	req := &ClaimRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	caller, err := verifyCaller([]byte(fmt.Sprintf("claim:%d", ticketID)), req.Caller, req.Signature)
	if err != nil {
		ErrInvalidSignature.WithErr(err).Write(w)
		return
	}
	result, err := a.engine.Claim(r.Context(), caller, ticketID)
	if err != nil {
		errorFromEngine(err).Write(w)
		return
	}
	httpWriteJSON(w, ClaimResponse{Payout: result.Payout, Consolation: result.Consolation})
}

// decodeAdminRequest decodes body into an AdminRequest and verifies the
// caller's signature over action (plus the optional "to" address).
func decodeAdminRequest(r *http.Request, action string) (*AdminRequest, common.Address, error) {
	req := &AdminRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return nil, common.Address{}, fmt.Errorf("could not decode request body: %w", err)
	}
	msg := []byte(fmt.Sprintf("%s:%s", action, req.To))
	caller, err := verifyCaller(msg, req.Caller, req.Signature)
	if err != nil {
		return nil, common.Address{}, err
	}
	return req, caller, nil
}

// withdrawFees withdraws the accrued community-fee balance to req.To.
// POST /admin/withdraw-fees
func (a *API) withdrawFees(w http.ResponseWriter, r *http.Request) {
	req, caller, err := decodeAdminRequest(r, "withdraw-fees")
	if err != nil {
		ErrInvalidSignature.WithErr(err).Write(w)
		return
	}
	if !common.IsHexAddress(req.To) {
		ErrMalformedAddress.Write(w)
		return
	}
	amount, err := a.engine.WithdrawAccruedFees(r.Context(), caller, common.HexToAddress(req.To))
	if err != nil {
		errorFromEngine(err).Write(w)
		return
	}
	httpWriteJSON(w, AmountResponse{Amount: amount})
}

// kill declares the current round the terminal round.
// POST /admin/kill
func (a *API) kill(w http.ResponseWriter, r *http.Request) {
	_, caller, err := decodeAdminRequest(r, "kill")
	if err != nil {
		ErrInvalidSignature.WithErr(err).Write(w)
		return
	}
	if err := a.engine.Kill(caller); err != nil {
		errorFromEngine(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// rescueNative sweeps the engine's unaccounted native-coin balance to req.To.
// POST /admin/rescue-native
func (a *API) rescueNative(w http.ResponseWriter, r *http.Request) {
	req, caller, err := decodeAdminRequest(r, "rescue-native")
	if err != nil {
		ErrInvalidSignature.WithErr(err).Write(w)
		return
	}
	if !common.IsHexAddress(req.To) {
		ErrMalformedAddress.Write(w)
		return
	}
	if a.transferNative == nil {
		ErrGenericInternalServerError.Withf("node has no native-transfer collaborator configured").Write(w)
		return
	}
	amount, err := a.engine.RescueNative(r.Context(), caller, common.HexToAddress(req.To), a.transferNative)
	if err != nil {
		errorFromEngine(err).Write(w)
		return
	}
	httpWriteJSON(w, AmountResponse{Amount: amount})
}

// rescueToken sweeps the value ledger's unaccounted balance to req.To.
// POST /admin/rescue-token
func (a *API) rescueToken(w http.ResponseWriter, r *http.Request) {
	req, caller, err := decodeAdminRequest(r, "rescue-token")
	if err != nil {
		ErrInvalidSignature.WithErr(err).Write(w)
		return
	}
	if !common.IsHexAddress(req.To) {
		ErrMalformedAddress.Write(w)
		return
	}
	amount, err := a.engine.RescueToken(r.Context(), caller, common.HexToAddress(req.To))
	if err != nil {
		errorFromEngine(err).Write(w)
		return
	}
	httpWriteJSON(w, AmountResponse{Amount: amount})
}
