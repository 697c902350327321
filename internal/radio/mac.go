package radio

// DefaultAnchorAddress is the default anchor MAC address table: the
// PAN-scoped base address with the anchor id in the low byte (spec
// §6.1). A deployment with a custom PAN can override it via
// Driver.SetAnchorAddresses.
var DefaultAnchorAddress = func() [8]uint64 {
	var addrs [8]uint64
	for id := range addrs {
		addrs[id] = 0xbccf000000000000 | uint64(id)
	}
	return addrs
}()

// TagAddress is the fixed source address the tag uses on outgoing
// frames, matching the anchors' PAN with the reserved 0xff low byte.
const TagAddress = 0xbccf0000000000ff

// PAN is the 802.15.4 PAN id shared by the tag and every anchor.
const PAN = 0xbccf

// anchorIDForAddress returns the index of addr in the addrs table as
// the anchor id, and whether addr matches one of the known anchors.
func anchorIDForAddress(addrs [8]uint64, addr uint64) (id byte, ok bool) {
	for i, a := range addrs {
		if a == addr {
			return byte(i), true
		}
	}
	return 0, false
}
