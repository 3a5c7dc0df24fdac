package secretsharing

import (
	"fmt"

	"github.com/Davincible/sharecrypt/pkg/crypto/rss"
	"github.com/Davincible/sharecrypt/pkg/crypto/shamir"
)

// RobustSharer implements SecretSharer for robust secret sharing. Each share
// carries the party's Shamir share plus its k-i-j and tag-i-j attachments.
type RobustSharer struct{}

func NewRobustSharer() *RobustSharer {
	return &RobustSharer{}
}

func (r *RobustSharer) Split(secret []byte, config SecretSharingConfig) ([]Share, error) {
	if err := r.ValidateConfig(config); err != nil {
		return nil, err
	}

	set, err := rss.Generate(secret, rssConfig(config))
	if err != nil {
		return nil, fmt.Errorf("robust split failed: %w", err)
	}

	pkgs := set.Packages()
	shares := make([]Share, len(pkgs))
	for i, pkg := range pkgs {
		shares[i] = Share{
			Scheme:      SchemeRobust,
			Party:       pkg.Party,
			Attachments: make([]Attachment, len(pkg.Artifacts)),
		}
		for j, a := range pkg.Artifacts {
			shares[i].Attachments[j] = Attachment{Name: a.Name, Data: a.Data}
		}
	}
	return shares, nil
}

func (r *RobustSharer) Combine(shares []Share, opts CombineOptions) (*Reconstruction, error) {
	pkgs := make([]rss.Package, len(shares))
	for i, s := range shares {
		pkgs[i] = toPackage(s)
	}

	set, err := rss.Collect(pkgs)
	if err != nil {
		return nil, fmt.Errorf("failed to collect robust shares: %w", err)
	}

	result, err := rss.VerifyAndReconstruct(set, rss.VerifyOptions{
		Threshold: opts.Threshold,
		Logger:    opts.Logger,
	})
	if result == nil {
		return nil, err
	}
	rec := &Reconstruction{Secret: result.Secret, Accepted: result.Accepted}
	if err != nil {
		return rec, fmt.Errorf("robust combine failed: %w", err)
	}
	return rec, nil
}

// Verify checks the attachment names and blobs of a single party. Tags can
// only be checked against the other parties' keys, in Combine.
func (r *RobustSharer) Verify(share Share) error {
	data, err := shareAttachment(share)
	if err != nil {
		return err
	}
	if _, err := shamir.ParseShare(string(data)); err != nil {
		return fmt.Errorf("%w: party %d: %w", ErrInvalidShare, share.Party, err)
	}

	for _, a := range share.Attachments {
		name, err := rss.ParseArtifactName(a.Name)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidShare, err)
		}
		if name.Kind == rss.KindShare {
			continue
		}
		if share.Party != 0 && name.Source != share.Party {
			return fmt.Errorf("%w: attachment %s does not belong to party %d", ErrInvalidShare, a.Name, share.Party)
		}
		if _, err := rss.ParseBlob(a.Data); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidShare, a.Name, err)
		}
	}
	return nil
}

func (r *RobustSharer) ValidateConfig(config SecretSharingConfig) error {
	rc := rssConfig(config)
	if err := rc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (r *RobustSharer) GetScheme() SchemeType {
	return SchemeRobust
}

func rssConfig(config SecretSharingConfig) rss.Config {
	return rss.Config{
		Parties:   config.Parties,
		Threshold: config.Threshold,
		NumKeys:   config.NumKeys,
		Bits:      config.Bits,
		PadLength: config.PadLength,
		Rand:      config.Rand,
	}
}

func toPackage(s Share) rss.Package {
	pkg := rss.Package{Party: s.Party, Artifacts: make([]rss.Artifact, len(s.Attachments))}
	for i, a := range s.Attachments {
		pkg.Artifacts[i] = rss.Artifact{Name: a.Name, Data: a.Data}
	}
	return pkg
}

func init() {
	DefaultRegistry.Register(NewRobustSharer())
}
