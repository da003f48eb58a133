package track

import "sync"

// interactionState tracks which geofences each player is currently inside,
// for enter/exit edge detection. It lives for the tracker's lifetime and is
// never persisted. Entries are pruned on every re-evaluation of a player, so
// the map cannot grow past (players x POIs currently in range).
type interactionState struct {
	mu     sync.Mutex
	active map[string]map[string]struct{} // playerID -> set of POI ids
}

func newInteractionState() *interactionState {
	return &interactionState{active: make(map[string]map[string]struct{})}
}

// activate marks the (player, poi) pair active and reports whether it was
// newly activated. Marking happens before the interaction fires, so
// interleaved reports cannot double-fire the same entry.
func (s *interactionState) activate(playerID, poiID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.active[playerID]
	if !ok {
		set = make(map[string]struct{})
		s.active[playerID] = set
	}
	if _, exists := set[poiID]; exists {
		return false
	}
	set[poiID] = struct{}{}
	return true
}

// prune clears every active pair of the player that is not in the given
// in-range set. Leaving a geofence re-arms it for the next entry.
func (s *interactionState) prune(playerID string, inRange map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.active[playerID]
	if !ok {
		return
	}
	for poiID := range set {
		if _, still := inRange[poiID]; !still {
			delete(set, poiID)
		}
	}
	if len(set) == 0 {
		delete(s.active, playerID)
	}
}

// forget drops all state for the player, e.g. when they leave a game.
func (s *interactionState) forget(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, playerID)
}

func (s *interactionState) isActive(playerID, poiID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[playerID][poiID]
	return ok
}
