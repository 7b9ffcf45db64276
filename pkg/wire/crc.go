package wire

import "hash/crc32"

// crcTable is the IEEE 802.3 polynomial table (0xEDB88320), matching
// crc32.IEEE exactly; spelled out for clarity since the frame format
// pins this specific polynomial rather than "whichever crc32 default".
var crcTable = crc32.MakeTable(crc32.IEEE)

// ChecksumCRC32 computes the IEEE CRC-32 over payload, the same
// checksum a frame's trailer carries.
func ChecksumCRC32(payload []byte) uint32 {
	return crc32.Checksum(payload, crcTable)
}
