package process

import (
	"bufio"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var mapsLine = regexp.MustCompile(`^([0-9a-f]+)-([0-9a-f]+)\s+([rwxps-]+)\s+([0-9a-f]+)\s+([0-9a-f]+:[0-9a-f]+)\s+(\d+)(?:\s+(.*))?$`)

// mapping is one line of a procfs maps file.
type mapping struct {
	start  uint64
	end    uint64
	rwx    string
	offset uint64
	path   string
}

func (m mapping) region() Region {
	state := RegionCommitted
	if !strings.ContainsAny(m.rwx, "rwx") {
		state = RegionReserved
	}

	return Region{
		Base:  uintptr(m.start),
		Size:  uintptr(m.end - m.start),
		State: state,
	}
}

func parseMaps(r io.Reader) ([]mapping, error) {
	var maps []mapping

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		match := mapsLine.FindStringSubmatch(scanner.Text())
		if len(match) < 7 {
			continue
		}

		start, _ := strconv.ParseUint(match[1], 16, 64)
		end, _ := strconv.ParseUint(match[2], 16, 64)
		offset, _ := strconv.ParseUint(match[4], 16, 64)

		maps = append(maps, mapping{
			start:  start,
			end:    end,
			rwx:    match[3],
			offset: offset,
			path:   strings.TrimSpace(match[7]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read maps")
	}

	return maps, nil
}

// regionAt describes the mapping containing addr, or the free gap
// around it. maps must be sorted, as the kernel writes them.
func regionAt(maps []mapping, addr uintptr) Region {
	a := uint64(addr)

	for _, m := range maps {
		if a < m.start {
			return Region{Base: addr, Size: uintptr(m.start - a), State: RegionFree}
		}
		if a < m.end {
			return m.region()
		}
	}

	size := ^addr + 1
	if size == 0 {
		size = ^uintptr(0)
	}
	return Region{Base: addr, Size: size, State: RegionFree}
}

// mapsSnapshot answers region queries from one parse of a maps file.
type mapsSnapshot []mapping

func (o mapsSnapshot) regionAt(addr uintptr) (Region, bool) {
	if len(o) == 0 {
		return Region{}, false
	}
	return regionAt(o, addr), true
}

// mappedImage is a file mapped into a process, possibly over several
// mappings.
type mappedImage struct {
	path string
	base uint64
	end  uint64
}

func (o mappedImage) name() string {
	return filepath.Base(o.path)
}

// mappedImages groups file-backed mappings by path, in order of first
// appearance.
func mappedImages(maps []mapping) []mappedImage {
	var images []mappedImage
	index := make(map[string]int)

	for _, m := range maps {
		if !strings.HasPrefix(m.path, "/") {
			continue
		}

		path := strings.TrimSuffix(m.path, " (deleted)")
		i, hasIt := index[path]
		if !hasIt {
			index[path] = len(images)
			images = append(images, mappedImage{path: path, base: m.start, end: m.end})
			continue
		}

		if m.start < images[i].base {
			images[i].base = m.start
		}
		if m.end > images[i].end {
			images[i].end = m.end
		}
	}

	return images
}
