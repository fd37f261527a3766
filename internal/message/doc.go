// Package message parses and encodes HDF5 object header messages.
//
// Each header message has a type, flags and a type-specific body. This
// package decodes the bodies nxsplit needs to understand (dataspace,
// datatype, layout, filters, fill value, links, link and group info, symbol
// table, attributes) and keeps everything else as [Raw] so headers can be
// rewritten without losing information.
//
// # Encoding
//
// Every message that can be written implements [Encoder]. Encoders append to
// a [binary.Buffer]; the encoded length is simply the number of bytes
// appended, so there is no separate size computation to keep in sync.
//
//	b := binary.NewBuffer(cfg)
//	message.NewDataspace([]uint64{10}, nil).Encode(b)
//
// # Virtual datasets
//
// A virtual layout (class 3) points into the global heap. The heap object
// holds the mapping list, encoded by [EncodeVirtualMappings] and decoded by
// [DecodeVirtualMappings]; each mapping pairs a source dataset selection
// with a selection of the virtual dataspace (see [Selection]).
package message
