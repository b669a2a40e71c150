// Package hexdna implements the HexDNA portable genotype codec (spec C6):
// a self-describing, versioned binary encoding of an entity.Genotype,
// rendered as uppercase hexadecimal text, with guaranteed round-trip
// identity. Grounded on telemetry/snapshot.go's versioned-struct pattern
// (a SnapshotVersion const plus explicit To/From conversions), adapted here
// to a schema-byte + field-list binary layout instead of JSON since the
// contract calls for a compact portable blob rather than a document format.
package hexdna

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	neatmath "github.com/yaricom/goNEAT/v4/neat/math"
	"github.com/yaricom/goNEAT/v4/neat/genetics"
	"github.com/yaricom/goNEAT/v4/neat/network"

	"github.com/pthm-cable/primordium/corerr"
	"github.com/pthm-cable/primordium/entity"
	"github.com/pthm-cable/primordium/neural"
)

// SchemaVersion is incremented when the field layout changes. Encode always
// writes the current version; Decode rejects anything else.
const SchemaVersion byte = 1

// neuron type codes, stable across goNEAT versions since they're a codec
// choice, not a mirror of the library's own enum values.
const (
	neuronInput  uint8 = 0
	neuronOutput uint8 = 1
	neuronHidden uint8 = 2
)

// activation type codes. CreateFounderGenome and every mutation path in
// package neural only ever assign Linear to input nodes and Tanh to
// everything else, so two codes are sufficient to round-trip any genotype
// this simulation produces.
const (
	activationLinear uint8 = 0
	activationTanh   uint8 = 1
)

// Encode serializes a genotype to its schema-versioned binary form and
// returns it as uppercase hexadecimal text.
func Encode(g *entity.Genotype) (string, error) {
	if g.Brain == nil || g.Brain.Genome == nil {
		return "", fmt.Errorf("hexdna: encode: genotype has no brain genome")
	}
	genome := g.Brain.Genome

	var buf bytes.Buffer
	buf.WriteByte(SchemaVersion)

	idBytes, err := g.ID.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("hexdna: encode: marshal id: %w", err)
	}
	buf.Write(idBytes)

	writeUint64(&buf, uint64(g.Lineage))
	buf.WriteByte(g.R)
	buf.WriteByte(g.G)
	buf.WriteByte(g.B)

	for _, f := range physicalGeneFields(&g.Genes) {
		writeFloat64(&buf, *f)
	}

	writeInt32(&buf, int32(genome.Id))

	writeUint16(&buf, uint16(len(genome.Nodes)))
	for _, n := range genome.Nodes {
		writeInt32(&buf, int32(n.Id))
		switch n.NeuronType {
		case network.InputNeuron:
			buf.WriteByte(neuronInput)
		case network.OutputNeuron:
			buf.WriteByte(neuronOutput)
		default:
			buf.WriteByte(neuronHidden)
		}
		buf.WriteByte(encodeActivationType(n.ActivationType))
	}

	writeUint16(&buf, uint16(len(genome.Genes)))
	for _, gene := range genome.Genes {
		writeInt32(&buf, int32(gene.Link.InNode.Id))
		writeInt32(&buf, int32(gene.Link.OutNode.Id))
		writeFloat64(&buf, gene.Link.ConnectionWeight)
		writeBool(&buf, gene.Link.IsRecurrent)
		writeInt64(&buf, gene.InnovationNum)
		writeFloat64(&buf, gene.MutationNum)
		writeBool(&buf, gene.IsEnabled)
	}

	return strings.ToUpper(hex.EncodeToString(buf.Bytes())), nil
}

// Decode parses a HexDNA string back into a genotype with a freshly built
// brain network. Malformed hex, a truncated field list, or a schema-version
// mismatch all return a corerr.CoreError of KindGenotypeDecode; the caller
// (World.import_migrant) rejects the migrant and continues the tick.
func Decode(hexStr string) (*entity.Genotype, error) {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, corerr.NewGenotypeDecodeError("invalid hex encoding", err)
	}

	r := bytes.NewReader(raw)
	version, err := r.ReadByte()
	if err != nil {
		return nil, corerr.NewGenotypeDecodeError("empty HexDNA blob", err)
	}
	if version != SchemaVersion {
		return nil, corerr.NewGenotypeDecodeError(
			fmt.Sprintf("unsupported schema version %d (want %d)", version, SchemaVersion), nil)
	}

	var idBytes [16]byte
	if _, err := readFull(r, idBytes[:]); err != nil {
		return nil, corerr.NewGenotypeDecodeError("truncated entity id", err)
	}
	var id entity.ID
	if err := id.UnmarshalBinary(idBytes[:]); err != nil {
		return nil, corerr.NewGenotypeDecodeError("malformed entity id", err)
	}

	lineage, err := readUint64(r)
	if err != nil {
		return nil, corerr.NewGenotypeDecodeError("truncated lineage", err)
	}
	rb, gb, bb, err := readColor(r)
	if err != nil {
		return nil, corerr.NewGenotypeDecodeError("truncated color", err)
	}

	var genes entity.PhysicalGenes
	fields := physicalGeneFields(&genes)
	for i := range fields {
		v, err := readFloat64(r)
		if err != nil {
			return nil, corerr.NewGenotypeDecodeError("truncated physical genes", err)
		}
		*fields[i] = v
	}

	genomeID, err := readInt32(r)
	if err != nil {
		return nil, corerr.NewGenotypeDecodeError("truncated genome id", err)
	}

	nodeCount, err := readUint16(r)
	if err != nil {
		return nil, corerr.NewGenotypeDecodeError("truncated node count", err)
	}
	nodeByID := make(map[int32]*network.NNode, nodeCount)
	nodes := make([]*network.NNode, 0, nodeCount)
	for i := uint16(0); i < nodeCount; i++ {
		nid, err := readInt32(r)
		if err != nil {
			return nil, corerr.NewGenotypeDecodeError("truncated node record", err)
		}
		neuronByte, err := r.ReadByte()
		if err != nil {
			return nil, corerr.NewGenotypeDecodeError("truncated node record", err)
		}
		activationByte, err := r.ReadByte()
		if err != nil {
			return nil, corerr.NewGenotypeDecodeError("truncated node record", err)
		}

		var n *network.NNode
		switch neuronByte {
		case neuronInput:
			n = network.NewNNode(int(nid), network.InputNeuron)
		case neuronOutput:
			n = network.NewNNode(int(nid), network.OutputNeuron)
		case neuronHidden:
			n = network.NewNNode(int(nid), network.HiddenNeuron)
		default:
			return nil, corerr.NewGenotypeDecodeError("unknown neuron type code", fmt.Errorf("code %d", neuronByte))
		}
		n.ActivationType = decodeActivationType(activationByte)
		nodes = append(nodes, n)
		nodeByID[nid] = n
	}

	geneCount, err := readUint16(r)
	if err != nil {
		return nil, corerr.NewGenotypeDecodeError("truncated gene count", err)
	}
	geneRecords := make([]*genetics.Gene, 0, geneCount)
	for i := uint16(0); i < geneCount; i++ {
		inID, err := readInt32(r)
		if err != nil {
			return nil, corerr.NewGenotypeDecodeError("truncated gene record", err)
		}
		outID, err := readInt32(r)
		if err != nil {
			return nil, corerr.NewGenotypeDecodeError("truncated gene record", err)
		}
		weight, err := readFloat64(r)
		if err != nil {
			return nil, corerr.NewGenotypeDecodeError("truncated gene record", err)
		}
		recurrent, err := readBool(r)
		if err != nil {
			return nil, corerr.NewGenotypeDecodeError("truncated gene record", err)
		}
		innovNum, err := readInt64(r)
		if err != nil {
			return nil, corerr.NewGenotypeDecodeError("truncated gene record", err)
		}
		mutNum, err := readFloat64(r)
		if err != nil {
			return nil, corerr.NewGenotypeDecodeError("truncated gene record", err)
		}
		enabled, err := readBool(r)
		if err != nil {
			return nil, corerr.NewGenotypeDecodeError("truncated gene record", err)
		}

		inNode, ok := nodeByID[inID]
		if !ok {
			return nil, corerr.NewGenotypeDecodeError("gene references unknown in-node", nil)
		}
		outNode, ok := nodeByID[outID]
		if !ok {
			return nil, corerr.NewGenotypeDecodeError("gene references unknown out-node", nil)
		}

		gene := genetics.NewGeneWithTrait(nil, weight, inNode, outNode, recurrent, innovNum, mutNum)
		gene.IsEnabled = enabled
		geneRecords = append(geneRecords, gene)
	}

	if r.Len() != 0 {
		return nil, corerr.NewGenotypeDecodeError("trailing bytes after gene list", nil)
	}

	genome := genetics.NewGenome(int(genomeID), nil, nodes, geneRecords)
	brain, err := neural.NewBrain(genome)
	if err != nil {
		return nil, corerr.NewGenotypeDecodeError("rebuilding brain network", err)
	}

	return &entity.Genotype{
		ID:      id,
		Brain:   brain,
		Genes:   genes,
		R:       rb,
		G:       gb,
		B:       bb,
		Lineage: entity.LineageID(lineage),
	}, nil
}

// physicalGeneFields returns pointers to every PhysicalGenes field in a
// fixed order, shared by Encode and Decode so the wire layout can't drift
// out of sync between the two directions.
func physicalGeneFields(g *entity.PhysicalGenes) []*float64 {
	return []*float64{
		&g.SensingRange,
		&g.MaxSpeed,
		&g.MaxEnergyBase,
		&g.MetabolicNiche,
		&g.TrophicPotential,
		&g.ReproductiveInvest,
		&g.MaturityGene,
		&g.MatePreference,
		&g.PairingBias,
	}
}

func encodeActivationType(a neatmath.NodeActivationType) uint8 {
	if a == neatmath.LinearActivation {
		return activationLinear
	}
	return activationTanh
}

func decodeActivationType(b uint8) neatmath.NodeActivationType {
	if b == activationLinear {
		return neatmath.LinearActivation
	}
	return neural.ActivationTanh
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeInt32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	writeUint64(buf, uint64(v))
}

func writeFloat64(buf *bytes.Buffer, v float64) {
	writeUint64(buf, math.Float64bits(v))
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func readFull(r *bytes.Reader, p []byte) (int, error) {
	n := 0
	for n < len(p) {
		m, err := r.Read(p[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readUint16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readInt32(r *bytes.Reader) (int32, error) {
	var b [4]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}

func readInt64(r *bytes.Reader) (int64, error) {
	v, err := readUint64(r)
	return int64(v), err
}

func readFloat64(r *bytes.Reader) (float64, error) {
	v, err := readUint64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func readColor(r *bytes.Reader) (uint8, uint8, uint8, error) {
	var c [3]byte
	if _, err := readFull(r, c[:]); err != nil {
		return 0, 0, 0, err
	}
	return c[0], c[1], c[2], nil
}
