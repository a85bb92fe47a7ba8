package witness

import (
	"go.uber.org/zap"

	"github.com/wippyai/layout-runtime/metadata"
)

// InstantiateLayoutString resolves a freshly built layout string and
// associates it with the type. The association is set-once; resolution is
// idempotent, so re-instantiating with the same buffer is harmless.
func InstantiateLayoutString(layoutStr []byte, md *metadata.Metadata) error {
	ResolveLayoutString(layoutStr, md)
	if err := md.SetLayoutString(layoutStr); err != nil {
		return err
	}
	Logger().Debug("layout string instantiated",
		zap.String("type", md.Name()),
		zap.Int("bytes", len(layoutStr)))
	return nil
}

// InstallGenericWitnesses points the type's value witnesses at the engine's
// layout-string interpretation of them.
func InstallGenericWitnesses(e *Engine, md *metadata.Metadata) {
	vwt := md.ValueWitnesses()
	vwt.Destroy = func(value []byte) { e.Destroy(value, md) }
	vwt.InitializeWithCopy = func(dest, src []byte) { e.InitWithCopy(dest, src, md) }
	vwt.InitializeWithTake = func(dest, src []byte) { e.InitWithTake(dest, src, md) }
}

// InstallEnumSimpleWitnesses wires the single-payload enum tag witnesses of
// a type whose layout string holds one simple enum record.
func InstallEnumSimpleWitnesses(md *metadata.Metadata) {
	vwt := md.ValueWitnesses()
	vwt.GetEnumTagSinglePayload = func(value []byte, numEmptyCases uint32) uint32 {
		return EnumSimpleGetEnumTag(value, md)
	}
	vwt.StoreEnumTagSinglePayload = func(value []byte, tagValue, numEmptyCases uint32) {
		EnumSimpleInjectEnumTag(value, tagValue, md)
	}
}
