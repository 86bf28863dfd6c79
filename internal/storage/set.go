package storage

// Set backs SADD/SREM/SINTER and friends: a map used purely for its
// presence semantics, value type struct{} so membership costs no storage
// beyond the key itself.
type Set struct {
	Members map[string]struct{}
}

func NewSet() *Set {
	return &Set{Members: make(map[string]struct{})}
}

// Clone deep-copies the set for copy-on-write snapshotting.
func (s *Set) Clone() *Set {
	if s == nil || len(s.Members) == 0 {
		return NewSet()
	}
	clone := &Set{Members: make(map[string]struct{}, len(s.Members))}
	for member := range s.Members {
		clone.Members[member] = struct{}{}
	}
	return clone
}

// Add inserts member, reporting whether it was previously absent.
func (s *Set) Add(member string) bool {
	if s.IsMember(member) {
		return false
	}
	s.Members[member] = struct{}{}
	return true
}

// Remove deletes member, reporting whether it existed.
func (s *Set) Remove(member string) bool {
	if !s.IsMember(member) {
		return false
	}
	delete(s.Members, member)
	return true
}

func (s *Set) IsMember(member string) bool {
	_, ok := s.Members[member]
	return ok
}

func (s *Set) Len() int {
	return len(s.Members)
}

func (s *Set) GetMembers() []string {
	members := make([]string, 0, len(s.Members))
	for member := range s.Members {
		members = append(members, member)
	}
	return members
}

// Pop removes and returns an arbitrary member. Go's randomized map
// iteration order stands in for true randomness here.
func (s *Set) Pop() (string, bool) {
	for member := range s.Members {
		delete(s.Members, member)
		return member, true
	}
	return "", false
}

// RandomMember returns an arbitrary member without removing it.
func (s *Set) RandomMember() (string, bool) {
	for member := range s.Members {
		return member, true
	}
	return "", false
}

// RandomMembers returns count members without removing any. A negative
// count allows repeats and always returns exactly abs(count) entries; a
// non-negative count is capped at the set's size.
func (s *Set) RandomMembers(count int) []string {
	if s.Len() == 0 {
		return []string{}
	}

	allowDuplicates := count < 0
	if allowDuplicates {
		count = -count
	}

	members := s.GetMembers()
	if allowDuplicates {
		result := make([]string, count)
		for i := range result {
			result[i] = members[i%len(members)]
		}
		return result
	}

	if count > len(members) {
		count = len(members)
	}
	return members[:count]
}

// Union returns a new set with all members from both sets
func (s *Set) Union(other *Set) *Set {
	result := NewSet()
	for m := range s.Members {
		result.Add(m)
	}
	if other != nil {
		for m := range other.Members {
			result.Add(m)
		}
	}
	return result
}

// Intersect returns a new set with members common to both sets
func (s *Set) Intersect(other *Set) *Set {
	result := NewSet()
	if other == nil {
		return result
	}

	// Iterate over smaller set for efficiency
	smaller, larger := s, other
	if len(s.Members) > len(other.Members) {
		smaller, larger = other, s
	}

	for m := range smaller.Members {
		if larger.IsMember(m) {
			result.Add(m)
		}
	}
	return result
}

// Diff returns a new set with members in s but not in other
func (s *Set) Diff(other *Set) *Set {
	result := NewSet()
	for m := range s.Members {
		if other == nil || !other.IsMember(m) {
			result.Add(m)
		}
	}
	return result
}
