package role

import "github.com/pkg/errors"

// ErrNoSlotsAvailable indicates the capacity check passed but no free slot
// position was found; an invariant violation, not a user input error.
var ErrNoSlotsAvailable = errors.New("no free role slot position available")

// NextFreeSlotPosition returns the lowest position in 1..maxRoleSlots not
// already taken. Positions above the cap never get auto-assigned.
func NextFreeSlotPosition(taken []int, maxRoleSlots int) (int, error) {
	used := make(map[int]struct{}, len(taken))
	for _, pos := range taken {
		used[pos] = struct{}{}
	}
	for pos := 1; pos <= maxRoleSlots; pos++ {
		if _, ok := used[pos]; !ok {
			return pos, nil
		}
	}
	return 0, ErrNoSlotsAvailable
}
