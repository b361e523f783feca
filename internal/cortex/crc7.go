package cortex

const crc7Poly = 0x91

var crcTable = func() (t [256]uint8) {
	for i := range t {
		v := uint8(i)
		for j := 0; j < 8; j++ {
			if v&1 != 0 {
				v ^= crc7Poly
			}
			v >>= 1
		}
		t[i] = v
	}
	return t
}()

func crc7(crc uint8, buf []byte) uint8 {
	for _, v := range buf {
		crc = crcTable[crc^v]
	}
	return crc & 0x7f
}
