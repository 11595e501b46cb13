package types

import "errors"

var (
	errSlimTargetUpdateWithID        = errors.New("types: cannot update a SlimTarget using a SlimTarget with an id")
	errSlimTargetMergeConflictingIDs = errors.New("types: cannot merge SlimTargets with multiple, unequal ids")
)
