package versions

// DeletionResult is what DifferenceUpdate removed: a WholeVersion or an AliasOnly.
type DeletionResult interface {
	// Dirs lists the branch directories that no longer belong to anyone.
	Dirs() []string

	deletion()
}

// WholeVersion reports a removed version together with the aliases it owned.
type WholeVersion struct {
	Info Info
}

func (w WholeVersion) Dirs() []string { return w.Info.Dirs() }

func (WholeVersion) deletion() {}

// AliasOnly reports an alias stripped from a version that remains deployed.
type AliasOnly struct {
	Alias string
	Owner Identifier
}

func (a AliasOnly) Dirs() []string { return []string{a.Alias} }

func (AliasOnly) deletion() {}
