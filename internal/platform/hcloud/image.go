package hcloud

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/imamik/svmzner/internal/provisioning"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// EnsureMachineImage resolves the newest available image matching filter.
// A PinnedID that still exists and matches wins over newer candidates, even
// after the provider deprecated it, so re-runs keep the image the server was
// built from.
func (c *RealClient) EnsureMachineImage(ctx context.Context, filter provisioning.ImageFilter) (provisioning.ImageRef, error) {
	pattern, err := imagePattern(filter)
	if err != nil {
		return provisioning.ImageRef{}, err
	}

	if filter.PinnedID != 0 {
		img, _, err := c.client.Image.GetByID(ctx, filter.PinnedID)
		if err != nil {
			return provisioning.ImageRef{}, fmt.Errorf("failed to get pinned image %d: %w", filter.PinnedID, err)
		}
		if img != nil && img.Type == imageTypeFor(filter.Owner) && imageMatches(img, filter, pattern) {
			return imageRef(img), nil
		}
		c.observer.Printf("Pinned image %d is gone or no longer matches %q, selecting a new one", filter.PinnedID, pattern)
	}

	opts := hcloud.ImageListOpts{
		Type:   []hcloud.ImageType{imageTypeFor(filter.Owner)},
		Status: []hcloud.ImageStatus{hcloud.ImageStatusAvailable},
	}
	if filter.Architecture != "" {
		opts.Architecture = []hcloud.Architecture{hcloud.Architecture(filter.Architecture)}
	}

	images, err := c.client.Image.AllWithOpts(ctx, opts)
	if err != nil {
		return provisioning.ImageRef{}, fmt.Errorf("failed to list images: %w", err)
	}

	var candidates []*hcloud.Image
	for _, img := range images {
		if img != nil && !img.IsDeprecated() && imageMatches(img, filter, pattern) {
			candidates = append(candidates, img)
		}
	}
	if len(candidates) == 0 {
		return provisioning.ImageRef{}, &provisioning.NoMatchingImageError{Filter: filter}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].Created.Equal(candidates[j].Created) {
			return candidates[i].Created.After(candidates[j].Created)
		}
		return candidates[i].ID > candidates[j].ID
	})
	return imageRef(candidates[0]), nil
}

func imagePattern(filter provisioning.ImageFilter) (string, error) {
	pattern := filter.NamePattern
	if pattern == "" {
		pattern = "*"
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return "", fmt.Errorf("invalid image name pattern %q: %w", pattern, err)
	}
	return pattern, nil
}

// imageMatches checks name and architecture. Deprecation is left to the caller.
func imageMatches(img *hcloud.Image, filter provisioning.ImageFilter, pattern string) bool {
	if filter.Architecture != "" && string(img.Architecture) != filter.Architecture {
		return false
	}
	ok, _ := path.Match(pattern, imageName(img))
	return ok
}

// imageName is the name system images are published under. Snapshots have
// no name, only a description.
func imageName(img *hcloud.Image) string {
	if img.Name != "" {
		return img.Name
	}
	return img.Description
}

func imageTypeFor(owner provisioning.ImageOwner) hcloud.ImageType {
	if owner == provisioning.ImageOwnerSelf {
		return hcloud.ImageTypeSnapshot
	}
	return hcloud.ImageTypeSystem
}

func imageRef(img *hcloud.Image) provisioning.ImageRef {
	return provisioning.ImageRef{ID: img.ID, Name: imageName(img), Created: img.Created}
}
