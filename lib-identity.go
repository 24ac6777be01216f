package main

import "strings"

// ClassIdentity is the stable class identifier of an artifact folder and the
// name shown to users for it.
type ClassIdentity struct {
	ID          string
	DisplayName string
}

// ClassResolver derives a ClassIdentity from an artifact folder name. Scanning
// and generation only go through this interface, so a different folder
// naming convention is a new resolver and nothing else.
type ClassResolver interface {
	Resolve(folder string) ClassIdentity
}

// EraNameIDResolver understands folders named Era_Name_ShortID: the last
// segment is the class id and the second one the display name, e.g.
// "Tang_CelestialHorse_89f8c3" resolves to {89f8c3, CelestialHorse}.
// Names with fewer than three segments use the whole name for both.
type EraNameIDResolver struct{}

// Resolve implements ClassResolver.
func (EraNameIDResolver) Resolve(folder string) ClassIdentity {
	parts := strings.Split(folder, "_")
	if len(parts) < 3 {
		return ClassIdentity{ID: folder, DisplayName: folder}
	}
	return ClassIdentity{ID: parts[len(parts)-1], DisplayName: parts[1]}
}
