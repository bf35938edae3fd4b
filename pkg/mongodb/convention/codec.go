package convention

import (
	"bytes"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/kart-io/docbase/pkg/errors"
)

// structCodec encodes and decodes every struct kind through its class map.
type structCodec struct {
	registry *Registry
}

var (
	_ bsoncodec.ValueEncoder = (*structCodec)(nil)
	_ bsoncodec.ValueDecoder = (*structCodec)(nil)
)

func (c *structCodec) EncodeValue(ec bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	cm, err := c.registry.lookup(val.Type())
	if err != nil {
		return err
	}
	if len(cm.omitNull) == 0 {
		return cm.codec.EncodeValue(ec, vw, val)
	}

	var buf bytes.Buffer
	tmp, err := bsonrw.NewBSONValueWriter(&buf)
	if err != nil {
		return err
	}
	if err := cm.codec.EncodeValue(ec, tmp, val); err != nil {
		return err
	}

	doc, err := dropNulls(buf.Bytes(), cm.omitNull)
	if err != nil {
		return err
	}
	return bsonrw.Copier{}.CopyDocumentFromBytes(vw, doc)
}

// dropNulls rewrites doc without the null elements named in names.
func dropNulls(doc []byte, names map[string]struct{}) ([]byte, error) {
	elems, err := bson.Raw(doc).Elements()
	if err != nil {
		return nil, err
	}

	idx, out := bsoncore.AppendDocumentStart(make([]byte, 0, len(doc)))
	for _, e := range elems {
		if e.Value().Type == bsontype.Null {
			if _, ok := names[e.Key()]; ok {
				continue
			}
		}
		out = append(out, e...)
	}
	return bsoncore.AppendDocumentEnd(out, idx)
}

func (c *structCodec) DecodeValue(dc bsoncodec.DecodeContext, vr bsonrw.ValueReader, val reflect.Value) error {
	cm, err := c.registry.lookup(val.Type())
	if err != nil {
		return err
	}

	switch vr.Type() {
	case bsontype.Type(0), bsontype.EmbeddedDocument:
	default:
		return cm.codec.DecodeValue(dc, vr, val)
	}
	if cm.ignoreExtra {
		return cm.codec.DecodeValue(dc, vr, val)
	}

	doc, err := bsonrw.Copier{}.CopyDocumentToBytes(vr)
	if err != nil {
		return err
	}
	elems, err := bson.Raw(doc).Elements()
	if err != nil {
		return err
	}
	for _, e := range elems {
		if !cm.knows(e.Key()) {
			return errors.ErrUnknownElement.WithMessagef("element %q does not match any field of %s", e.Key(), cm.typ)
		}
	}

	return cm.codec.DecodeValue(dc, bsonrw.NewBSONDocumentReader(doc), val)
}
