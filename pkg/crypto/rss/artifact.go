package rss

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// ShareArtifact is the attachment name carrying a party's share.
const ShareArtifact = "share"

type ArtifactKind int

const (
	KindShare ArtifactKind = iota
	KindKey
	KindTag
)

func (k ArtifactKind) String() string {
	switch k {
	case KindShare:
		return "share"
	case KindKey:
		return "k"
	case KindTag:
		return "tag"
	default:
		return fmt.Sprintf("ArtifactKind(%d)", int(k))
	}
}

// ArtifactName is a parsed attachment name: "share", "k-<source>-<dest>" or
// "tag-<source>-<dest>".
type ArtifactName struct {
	Kind   ArtifactKind
	Source int
	Dest   int
}

func (a ArtifactName) String() string {
	if a.Kind == KindShare {
		return ShareArtifact
	}
	return fmt.Sprintf("%s-%d-%d", a.Kind, a.Source, a.Dest)
}

// KeyArtifact names the blob of keys party source uses to verify party dest.
func KeyArtifact(source, dest int) string {
	return ArtifactName{Kind: KindKey, Source: source, Dest: dest}.String()
}

// TagArtifact names the blob of tags party source presents to party dest.
func TagArtifact(source, dest int) string {
	return ArtifactName{Kind: KindTag, Source: source, Dest: dest}.String()
}

func ParseArtifactName(name string) (ArtifactName, error) {
	if name == ShareArtifact {
		return ArtifactName{Kind: KindShare}, nil
	}

	parts := strings.Split(name, "-")
	if len(parts) != 3 {
		return ArtifactName{}, fmt.Errorf("%w: unrecognized name %q", ErrMalformedArtifact, name)
	}

	var kind ArtifactKind
	switch parts[0] {
	case "k":
		kind = KindKey
	case "tag":
		kind = KindTag
	default:
		return ArtifactName{}, fmt.Errorf("%w: invalid type %q", ErrMalformedArtifact, parts[0])
	}

	source, errS := strconv.Atoi(parts[1])
	dest, errD := strconv.Atoi(parts[2])
	if errS != nil || errD != nil || source < 0 || dest < 0 {
		return ArtifactName{}, fmt.Errorf("%w: invalid source (%q) or dest (%q)", ErrMalformedArtifact, parts[1], parts[2])
	}

	return ArtifactName{Kind: kind, Source: source, Dest: dest}, nil
}

// EncodeBlob renders values as newline separated decimals with no trailing
// newline.
func EncodeBlob(values []uint32) []byte {
	var b bytes.Buffer
	for i, v := range values {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	return b.Bytes()
}

func ParseBlob(data []byte) ([]uint32, error) {
	text := strings.TrimRight(string(data), "\r\n")
	if text == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedBlob)
	}

	lines := strings.Split(text, "\n")
	values := make([]uint32, len(lines))
	for i, line := range lines {
		v, err := strconv.ParseUint(strings.TrimSpace(line), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedBlob, i+1, err)
		}
		values[i] = uint32(v)
	}
	return values, nil
}

type Artifact struct {
	Name string
	Data []byte
}

// Package is what a single party receives. Party is informational; Collect
// derives the party from the artifact names.
type Package struct {
	Party     int
	Artifacts []Artifact
}

// Artifact returns the artifact with the given name.
func (p Package) Artifact(name string) ([]byte, bool) {
	for _, a := range p.Artifacts {
		if a.Name == name {
			return a.Data, true
		}
	}
	return nil, false
}

// Package assembles party's share, the keys it verifies others with and the
// tags on its own share. The tags leave the trailing len(share) % 32
// characters of the share unprotected; see Generate.
func (s *Set) Package(party int) (Package, error) {
	n := s.Parties()
	if party < 1 || party > n {
		return Package{}, fmt.Errorf("%w: party %d of %d", ErrPartyOutOfRange, party, n)
	}

	pkg := Package{
		Party:     party,
		Artifacts: make([]Artifact, 0, 1+2*(n-1)),
	}
	pkg.Artifacts = append(pkg.Artifacts, Artifact{Name: ShareArtifact, Data: []byte(s.Shares[party-1])})
	for other := 1; other <= n; other++ {
		if other == party {
			continue
		}
		pkg.Artifacts = append(pkg.Artifacts,
			Artifact{Name: KeyArtifact(party, other), Data: EncodeBlob(s.Keys[Pair{Owner: other, Verifier: party}])},
			Artifact{Name: TagArtifact(party, other), Data: EncodeBlob(s.Tags[Pair{Owner: party, Verifier: other}])},
		)
	}
	return pkg, nil
}

// Packages returns one package per party in party order.
func (s *Set) Packages() []Package {
	pkgs := make([]Package, s.Parties())
	for i := range pkgs {
		pkgs[i], _ = s.Package(i + 1)
	}
	return pkgs
}

// Collect rebuilds a Set from the packages received from each party. The
// number of parties is the number of packages, and each package's party is
// the source named by its key and tag artifacts.
func Collect(packages []Package) (*Set, error) {
	n := len(packages)
	set := &Set{
		Shares: make([]string, n),
		Keys:   make(map[Pair][]uint32),
		Tags:   make(map[Pair][]uint32),
	}
	filled := make([]bool, n)

	for i, pkg := range packages {
		share, ok := pkg.Artifact(ShareArtifact)
		if !ok {
			return nil, fmt.Errorf("%w: package %d has no %q attachment", ErrMalformedArtifact, i+1, ShareArtifact)
		}

		party := 0
		for _, a := range pkg.Artifacts {
			if a.Name == ShareArtifact {
				continue
			}
			name, err := ParseArtifactName(a.Name)
			if err != nil {
				return nil, fmt.Errorf("package %d: %w", i+1, err)
			}
			values, err := ParseBlob(a.Data)
			if err != nil {
				return nil, fmt.Errorf("package %d: %s: %w", i+1, a.Name, err)
			}
			set.NumKeys = max(set.NumKeys, len(values))

			if party != 0 && name.Source != party {
				return nil, fmt.Errorf("%w: package %d names parties %d and %d", ErrPartyNotFound, i+1, party, name.Source)
			}
			party = name.Source

			switch name.Kind {
			case KindKey:
				set.Keys[Pair{Owner: name.Dest, Verifier: name.Source}] = values
			case KindTag:
				set.Tags[Pair{Owner: name.Source, Verifier: name.Dest}] = values
			}
		}

		if party == 0 {
			return nil, fmt.Errorf("%w: package %d", ErrPartyNotFound, i+1)
		}
		if party > n {
			return nil, fmt.Errorf("%w: party %d in package %d but only %d packages", ErrPartyOutOfRange, party, i+1, n)
		}
		if filled[party-1] {
			return nil, fmt.Errorf("%w: party %d sent more than one package", ErrPartyNotFound, party)
		}
		filled[party-1] = true
		set.Shares[party-1] = strings.TrimSpace(string(share))
	}

	return set, nil
}
