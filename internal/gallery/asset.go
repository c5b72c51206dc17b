package gallery

import (
	"net/url"
	"strings"
	"time"

	"reelcraft/internal/locator"
	"reelcraft/internal/videoapi"
)

// Asset is one rendered file in the user's gallery.
type Asset struct {
	Name      string    `json:"name"`
	Locator   string    `json:"locator"`
	Size      int64     `json:"size"`
	Modified  time.Time `json:"modified"`
	Thumbnail string    `json:"thumbnail,omitempty"`
}

func fromItem(item videoapi.GalleryItem, assets *locator.Resolver) Asset {
	return Asset{
		Name:      item.Name,
		Locator:   assets.Resolve(item.URL),
		Size:      item.Size,
		Modified:  videoapi.ParseTimestamp(item.Modified),
		Thumbnail: assets.Resolve(item.Thumbnail),
	}
}

// renamed returns a copy of a with its name and locators pointing at newName.
func (a Asset) renamed(newName string) Asset {
	out := a
	out.Locator = renameSegment(a.Locator, a.Name, newName)
	out.Thumbnail = renameSegment(a.Thumbnail, a.Name, newName)
	out.Name = newName
	return out
}

// renameSegment swaps oldName for newName in the last path segment of loc,
// keeping any suffix such as a thumbnail's ".jpg".
func renameSegment(loc, oldName, newName string) string {
	base := locator.StripQuery(loc)
	i := strings.LastIndex(base, "/")
	if i < 0 {
		return loc
	}
	segment := base[i+1:]
	for _, candidate := range []string{oldName, url.PathEscape(oldName)} {
		if candidate != "" && strings.HasPrefix(segment, candidate) {
			replacement := newName
			if candidate != oldName {
				replacement = url.PathEscape(newName)
			}
			return base[:i+1] + replacement + segment[len(candidate):]
		}
	}
	return loc
}
