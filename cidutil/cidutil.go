package cidutil

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"xdao.co/mpid/xorname"
)

// Sum512Name hashes data with sha2-512 and returns the digest as a Name.
func Sum512Name(data []byte) (xorname.Name, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_512, -1)
	if err != nil {
		return xorname.Name{}, err
	}
	dec, err := multihash.Decode(sum)
	if err != nil {
		return xorname.Name{}, err
	}
	return xorname.FromBytes(dec.Digest)
}

// NameCID returns the CIDv1 (raw + sha2-512) whose digest is name.
//
// Names are already sha2-512 digests, so the CID only re-labels them; it is
// what storage backends are keyed by.
func NameCID(name xorname.Name) cid.Cid {
	mh, err := multihash.Encode(name[:], multihash.SHA2_512)
	if err != nil {
		// Encode only fails for unknown codes or oversized digests.
		return cid.Undef
	}
	return cid.NewCidV1(cid.Raw, mh)
}

// NameFromCID is the inverse of NameCID.
func NameFromCID(id cid.Cid) (xorname.Name, error) {
	if !id.Defined() {
		return xorname.Name{}, fmt.Errorf("cidutil: undefined cid")
	}
	dec, err := multihash.Decode(id.Hash())
	if err != nil {
		return xorname.Name{}, err
	}
	if dec.Code != multihash.SHA2_512 {
		return xorname.Name{}, fmt.Errorf("cidutil: unexpected multihash %s", dec.Name)
	}
	return xorname.FromBytes(dec.Digest)
}

// ParseName accepts either a CID string or a full hex name.
func ParseName(s string) (xorname.Name, error) {
	if id, err := cid.Decode(s); err == nil {
		return NameFromCID(id)
	}
	return xorname.ParseHex(s)
}
