package service

import (
	"log"
	"time"

	"mizupay/internal/models"
	"mizupay/internal/repository"
)

// candidateLimit bounds how many ranked candidates one allocation attempt
// walks before conceding the race.
const candidateLimit = 25

// Allocation is the result of reserving a gift card. Degraded means the
// fallback chain bottomed out and the card's face value is below the
// requested amount; callers must not treat that as a true satisfaction.
type Allocation struct {
	Card     *models.GiftCard
	Degraded bool
}

// AllocatorService selects and atomically reserves one unused gift card for a
// required (amount, currency, provider). Selection relaxes constraints in a
// fixed precedence order; reservation is a conditional update retried down
// the candidate list, so a card is never handed out twice.
type AllocatorService struct {
	cards *repository.GiftCardRepository
	now   func() time.Time
}

func NewAllocatorService(cards *repository.GiftCardRepository) *AllocatorService {
	return &AllocatorService{cards: cards, now: time.Now}
}

// relaxationChain returns the ordered filters: exact match, provider relaxed,
// currency relaxed, and optionally any active card at all (degraded).
func relaxationChain(amount float64, currency, provider string, allowDegraded bool) []repository.CandidateFilter {
	chain := []repository.CandidateFilter{
		{Provider: provider, Currency: currency, MinAmount: amount},
		{Currency: currency, MinAmount: amount},
		{MinAmount: amount},
	}
	if allowDegraded {
		// Last resort: cheapest active card regardless of face value.
		chain = append(chain, repository.CandidateFilter{})
	}
	return chain
}

// Allocate walks the full relaxation chain, including the degraded last
// resort, and reserves the first claimable candidate.
func (a *AllocatorService) Allocate(amount float64, currency, provider string) (*Allocation, error) {
	return a.AllocateWithOptions(amount, currency, provider, true)
}

// AllocateWithOptions is Allocate with the degraded step made opt-in. With
// allowDegraded=false a catalog that could only serve an insufficient card
// yields ErrDegradedAllocation and reserves nothing, so the caller can hold
// the request for support instead of burning a wrong-value card.
//
// If every ranked candidate is claimed by concurrent callers, the whole
// selection is retried once from scratch before giving up with
// ErrConcurrentReservationLost. ErrNoGiftCardAvailable means the catalog
// holds no active unused card at all.
func (a *AllocatorService) AllocateWithOptions(amount float64, currency, provider string, allowDegraded bool) (*Allocation, error) {
	alloc, err := a.allocateOnce(amount, currency, provider, allowDegraded)
	if err == ErrConcurrentReservationLost {
		log.Printf("[Allocator] all candidates claimed for %.2f %s/%s, retrying selection", amount, currency, provider)
		alloc, err = a.allocateOnce(amount, currency, provider, allowDegraded)
	}
	return alloc, err
}

func (a *AllocatorService) allocateOnce(amount float64, currency, provider string, allowDegraded bool) (*Allocation, error) {
	sawCandidate := false
	for step, filter := range relaxationChain(amount, currency, provider, allowDegraded) {
		candidates, err := a.cards.Candidates(filter, candidateLimit)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			continue
		}
		sawCandidate = true
		degraded := filter.MinAmount <= 0
		for i := range candidates {
			card := &candidates[i]
			won, err := a.cards.Reserve(card.ID, a.now())
			if err != nil {
				return nil, err
			}
			if !won {
				// Concurrently claimed; move to the next ranked candidate.
				continue
			}
			card.IsUsed = true
			if degraded {
				log.Printf("[Allocator] degraded allocation: card %d (%s %.2f %s) for requested %.2f %s",
					card.ID, card.Provider, card.Amount, card.Currency, amount, currency)
			} else if step > 0 {
				log.Printf("[Allocator] relaxed match (step %d): card %d for %.2f %s/%s",
					step+1, card.ID, amount, currency, provider)
			}
			return &Allocation{Card: card, Degraded: degraded}, nil
		}
		// Every candidate at this step was stolen mid-flight; fall through
		// to the next relaxation the same way an empty result would.
	}
	if sawCandidate {
		return nil, ErrConcurrentReservationLost
	}
	if !allowDegraded {
		// Distinguish "nothing sufficient but inventory exists" from a
		// truly empty catalog.
		any, err := a.cards.Candidates(repository.CandidateFilter{}, 1)
		if err != nil {
			return nil, err
		}
		if len(any) > 0 {
			return nil, ErrDegradedAllocation
		}
	}
	return nil, ErrNoGiftCardAvailable
}
