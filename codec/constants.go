package codec

// Type flags. The flag byte leads every encoded value, so values of different
// kinds never share an encoding and nil sorts after everything else.
const (
	stringFlag byte = 0x00
	bytesFlag  byte = 0x01
	intFlag    byte = 0x02
	uintFlag   byte = 0x03
	floatFlag  byte = 0x04
	boolFlag   byte = 0x05
	timeFlag   byte = 0x06
	uuidFlag   byte = 0x07
	jsonFlag   byte = 0x09
	nilFlag    byte = 0xFF
)
