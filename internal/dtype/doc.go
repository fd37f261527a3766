// Package dtype converts between HDF5 element bytes and Go values.
//
// Only the classes a detector master file carries are handled: integers,
// IEEE floats and fixed-length strings.
//
//	HDF5 Class        | Go Type
//	------------------|------------------
//	Fixed-point (int) | any Number, converted
//	Floating-point    | any Number, converted
//	String (fixed)    | string
//
// # Reading Data
//
// Use [Decode] to convert raw bytes to a numeric slice:
//
//	omega, err := dtype.Decode[float64](datatype, raw)
//
// # Writing Data
//
// Use [Encode] to convert Go values to the bytes of a datatype, and
// [ParseValue] to turn text such as a command line fill value into one
// element:
//
//	fill, err := dtype.ParseValue(datatype, "-1")
package dtype
