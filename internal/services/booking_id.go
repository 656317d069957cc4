package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"tourbackend/internal/domain"
	"tourbackend/internal/repositories"
	"tourbackend/internal/utils"
)

const (
	InitialPrefix = "AA"

	minBookingNumber = 1000
	maxBookingNumber = 9999
	numbersPerPrefix = maxBookingNumber - minBookingNumber + 1

	maxIDAttempts      = 50
	maxPrefixAdvances  = 32
	fallbackIDModuloMs = 1_000_000
)

// BookingIDAllocator hands out ids of the form "<PREFIX>-NNNN". The active
// prefix lives in the store and only moves forward once all 9000 numbers
// under it are taken.
type BookingIDAllocator struct {
	Bookings repositories.BookingRepository
	// IntN returns a value in [0, n). Defaults to math/rand/v2.
	IntN func(n int) int
	Now  func() time.Time
}

func (a BookingIDAllocator) intN(n int) int {
	if a.IntN != nil {
		return a.IntN(n)
	}
	return rand.IntN(n)
}

func (a BookingIDAllocator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// NextPrefix increments an uppercase base-26 prefix with carry. When every
// letter is Z the width grows by one: "AZ"->"BA", "ZZ"->"AAA".
func NextPrefix(p string) string {
	b := []byte(strings.ToUpper(p))
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 'Z' {
			b[i]++
			return string(b)
		}
		b[i] = 'A'
	}
	return strings.Repeat("A", len(b)+1)
}

// GetNextAvailablePrefix returns the active prefix, advancing it first when
// its number space is exhausted.
func (a BookingIDAllocator) GetNextAvailablePrefix(ctx context.Context) (string, error) {
	prefix, err := a.Bookings.CurrentPrefix(ctx, InitialPrefix)
	if err != nil {
		return "", err
	}

	for i := 0; i < maxPrefixAdvances; i++ {
		taken, err := a.takenNumbers(ctx, prefix)
		if err != nil {
			return "", err
		}
		if taken < numbersPerPrefix {
			return prefix, nil
		}

		next := NextPrefix(prefix)
		swapped, err := a.Bookings.SwapPrefix(ctx, prefix, next)
		if err != nil {
			return "", err
		}
		if swapped {
			utils.LogCtx(ctx, "booking_id", "prefix_advanced", fmt.Sprintf("from=%s to=%s", prefix, next))
			prefix = next
			continue
		}
		// Another request advanced it first.
		if prefix, err = a.Bookings.CurrentPrefix(ctx, InitialPrefix); err != nil {
			return "", err
		}
	}
	return "", domain.InternalError{Msg: "booking id prefix could not be advanced"}
}

func (a BookingIDAllocator) takenNumbers(ctx context.Context, prefix string) (int, error) {
	ids, err := a.Bookings.IDsWithPrefix(ctx, prefix)
	if err != nil {
		return 0, err
	}
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		n, err := strconv.Atoi(strings.TrimPrefix(id, prefix+"-"))
		if err != nil || n < minBookingNumber || n > maxBookingNumber {
			continue
		}
		seen[n] = struct{}{}
	}
	return len(seen), nil
}

// GenerateBookingID picks a random free number under the active prefix. The
// id is only a candidate: callers claim it with a conditional insert.
func (a BookingIDAllocator) GenerateBookingID(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		prefix, err := a.GetNextAvailablePrefix(ctx)
		if err != nil {
			return "", err
		}
		id := fmt.Sprintf("%s-%04d", prefix, minBookingNumber+a.intN(numbersPerPrefix))
		exists, err := a.Bookings.Exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}

	id := fmt.Sprintf("FB-%06d", a.now().UnixMilli()%fallbackIDModuloMs)
	utils.LogCtx(ctx, "booking_id", "fallback", fmt.Sprintf("id=%s attempts=%d", id, maxIDAttempts))
	return id, nil
}
