package cache

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Keys are the coordinate tuple as 16-bit length-prefixed UTF-8 strings in
// the order (group, artifact, classifier, extension, version). Version lists
// are a 16-bit count followed by the same string encoding. Artifact payloads
// carry a 32-bit length prefix: POMs and JARs routinely exceed what 16 bits
// can address.

func encodeArtifactKey(a Artifact) []byte {
	var buf []byte
	for _, field := range []string{a.GroupID, a.ArtifactID, a.Classifier, a.Extension, a.Version} {
		buf = appendString(buf, field)
	}
	return buf
}

func decodeArtifactKey(data []byte) (Artifact, error) {
	var fields [5]string
	rest := data
	for i := range fields {
		var err error
		fields[i], rest, err = readString(rest)
		if err != nil {
			return Artifact{}, fmt.Errorf("artifact key field %d: %w", i, err)
		}
	}
	if len(rest) != 0 {
		return Artifact{}, fmt.Errorf("artifact key has %d trailing bytes", len(rest))
	}
	return Artifact{
		GroupID:    fields[0],
		ArtifactID: fields[1],
		Classifier: fields[2],
		Extension:  fields[3],
		Version:    fields[4],
	}, nil
}

func encodeVersions(versions []string) ([]byte, error) {
	if len(versions) > math.MaxUint16 {
		return nil, fmt.Errorf("version list too long: %d entries", len(versions))
	}
	buf := binary.BigEndian.AppendUint16(nil, uint16(len(versions)))
	for _, version := range versions {
		buf = appendString(buf, version)
	}
	return buf, nil
}

func decodeVersions(data []byte) ([]string, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("version list truncated")
	}
	count := binary.BigEndian.Uint16(data)
	rest := data[2:]
	versions := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		var version string
		var err error
		version, rest, err = readString(rest)
		if err != nil {
			return nil, fmt.Errorf("version %d: %w", i, err)
		}
		versions = append(versions, version)
	}
	return versions, nil
}

func encodePayload(data []byte) []byte {
	buf := binary.BigEndian.AppendUint32(nil, uint32(len(data)))
	return append(buf, data...)
}

func decodePayload(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("payload truncated")
	}
	size := binary.BigEndian.Uint32(data)
	if int(size) != len(data)-4 {
		return nil, fmt.Errorf("payload length %d does not match prefix %d", len(data)-4, size)
	}
	payload := make([]byte, size)
	copy(payload, data[4:])
	return payload, nil
}

func appendString(buf []byte, s string) []byte {
	if len(s) > math.MaxUint16 {
		s = s[:math.MaxUint16]
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func readString(data []byte) (string, []byte, error) {
	if len(data) < 2 {
		return "", nil, fmt.Errorf("string length truncated")
	}
	size := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < size {
		return "", nil, fmt.Errorf("string body truncated: want %d bytes, have %d", size, len(data))
	}
	return string(data[:size]), data[size:], nil
}
