package objdisk

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tarndt/blockio/pkg/util/strms"

	"github.com/dustin/go-humanize"
	"github.com/graymeta/stow"
)

const segNamePrefix = "blkio-seg_"

//segment is one fixed-size run of blocks persisted as a single remote
// object. A segment with no local data and no remote item is sparse: it has
// never held anything but zeros and costs nothing, locally or remotely.
type segment struct {
	id   int
	data []byte //nil until materialized

	dirty bool

	remoteItem stow.Item //nil until first uploaded (or discovered at load)
	remoteMode Mode      //compression of the remote object
}

//loadSegments enumerates the container and pairs any objects found with
// their segments so existing devices reopen with their data intact
func loadSegments(container stow.Container, totalBytes, segmentBytes int64) ([]segment, error) {
	count := int(totalBytes / segmentBytes)
	segments := make([]segment, count)
	for i := range segments {
		segments[i].id = i
	}

	items, cursor, err := container.Items(segNamePrefix, stow.CursorStart, count+1)
	switch {
	case err != nil:
		return nil, fmt.Errorf("Could not enumerate items in %s: %w", describeContainer(container), err)
	case len(items) > count:
		return nil, fmt.Errorf("Enumeration of %s revealed more than the expected %d items", describeContainer(container), count)
	case !stow.IsCursorEnd(cursor):
		return nil, fmt.Errorf("After enumerating the expected %d items the %s indicated more items exist", count, describeContainer(container))
	}

	for _, item := range items {
		ext := filepath.Ext(strings.TrimPrefix(item.Name(), segNamePrefix))
		mode := ModeFromExt(ext)
		if mode == ModeUnknown {
			return nil, fmt.Errorf("%s in %s was stored with an unrecognized compression (extension %q)", describeItem(item), describeContainer(container), ext)
		}

		segIDStr := strings.TrimPrefix(item.Name(), segNamePrefix) //Remove <blkio-seg_>X
		segIDStr = strings.TrimSuffix(segIDStr, ext)               //Remove any compression extension
		segID, err := strconv.Atoi(segIDStr)
		switch {
		case err != nil:
			return nil, fmt.Errorf("Could not parse %s name into a segment ID while iterating on items in %s: Parse %q failed: %w", describeItem(item), describeContainer(container), segIDStr, err)
		case segID < 0 || segID >= count:
			return nil, fmt.Errorf("Parsed ID: %d from %s in %s was not in expected range (0 <= %d < %d)", segID, describeItem(item), describeContainer(container), segID, count)
		}

		segments[segID].remoteItem = item
		segments[segID].remoteMode = mode
	}

	return segments, nil
}

//objName is the object name this segment is stored under for a given
// compression mode; the mode travels as the extension so a reopened device
// knows how to decode each object it finds
func (seg *segment) objName(mode Mode) string {
	return segNamePrefix + strconv.Itoa(seg.id) + mode.Ext()
}

//load materializes this segment's data from its remote object. It returns
// nil data for sparse segments; callers reading must treat that as zeros.
func (seg *segment) load(segmentBytes int64) ([]byte, error) {
	if seg.data != nil || seg.remoteItem == nil {
		return seg.data, nil
	}

	rawRdr, err := seg.remoteItem.Open()
	if err != nil {
		return nil, fmt.Errorf("Could not open %s: %w", describeItem(seg.remoteItem), err)
	}
	closers := []io.Closer{rawRdr}

	rdr, err := seg.remoteMode.NewReader(rawRdr)
	if err != nil {
		rawRdr.Close()
		return nil, fmt.Errorf("Could not create %s stream decompressor for %s: %w", seg.remoteMode, describeItem(seg.remoteItem), err)
	}
	if closer, ok := rdr.(io.Closer); ok {
		closers = append([]io.Closer{closer}, closers...)
	}

	strm := strms.NewReadFirstCloseList(rdr, closers...)
	defer strm.Close()

	data := make([]byte, segmentBytes)
	if _, err = io.ReadFull(strm, data); err != nil {
		return nil, fmt.Errorf("%s did not contain the expected %s of data: %w", describeItem(seg.remoteItem), humanize.IBytes(uint64(segmentBytes)), err)
	}
	if n, _ := strm.Read(make([]byte, 1)); n != 0 {
		return nil, fmt.Errorf("%s contained more than the expected %s of data", describeItem(seg.remoteItem), humanize.IBytes(uint64(segmentBytes)))
	}

	seg.data = data
	return seg.data, nil
}
