package model

// PackageRecord gathers all the descriptions of a package, by pool location
type PackageRecord struct {
	ID           PackageID
	Descriptions map[PoolLocation]Description
}

// NewPackageRecord builds an empty record
func NewPackageRecord(id PackageID) PackageRecord {
	return PackageRecord{ID: id, Descriptions: make(map[PoolLocation]Description)}
}

// PreferredLocation selects the most authoritative location for which a description exists
func (r PackageRecord) PreferredLocation() (PoolLocation, bool) {
	for _, loc := range PreferredLocationOrder {
		if _, ok := r.Descriptions[loc]; ok {
			return loc, true
		}
	}
	return LocationUnset, false
}

// With returns a copy of the record, with the package described at its location
func (r PackageRecord) With(pkg Package, description Description) PackageRecord {
	out := r.clone()
	out.Descriptions[pkg.Location.OrDefault()] = description
	return out
}

// Without returns a copy of the record, without any description at this location
func (r PackageRecord) Without(loc PoolLocation) PackageRecord {
	out := r.clone()
	delete(out.Descriptions, loc.OrDefault())
	return out
}

// IsEmpty tells if the record does not describe any location
func (r PackageRecord) IsEmpty() bool {
	return len(r.Descriptions) == 0
}

// Package projects the record at a given location onto a package
func (r PackageRecord) Package(loc PoolLocation) (Package, bool) {
	d, ok := r.Descriptions[loc]
	if !ok {
		return Package{}, false
	}
	version, _ := d.Desc.Get(DescVersion)
	arch, _ := d.Desc.Get(DescArch)

	return Package{
		Section:      r.ID.Section,
		Name:         r.ID.Name,
		Version:      ParseVersion(version),
		Architecture: arch,
		Filepath:     d.Filepath,
		HasSignature: d.HasSignature(),
		Location:     loc,
	}, true
}

// Preferred projects the record at its preferred location
func (r PackageRecord) Preferred() (Package, bool) {
	loc, ok := r.PreferredLocation()
	if !ok {
		return Package{}, false
	}
	return r.Package(loc)
}

func (r PackageRecord) clone() PackageRecord {
	out := NewPackageRecord(r.ID)
	for k, v := range r.Descriptions {
		out.Descriptions[k] = v
	}
	return out
}
