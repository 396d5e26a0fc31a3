package pipeline

import "github.com/chicogong/avpipeline/pkg/avutil"

// validateChain walks source -> stages -> sink and rejects ill-typed
// adjacency (spec.md §4.8: "Validation forbids ill-typed adjacency, e.g.
// encoder → decoder"). Matching unit kinds (Packet/Frame) is necessary
// but not sufficient: an encoder's packet output and a bitstream filter's
// packet input are the same UnitKind, yet spec.md's allowed shapes never
// place a stage after an encoder, so that is rejected explicitly rather
// than relying on unit-kind equality alone.
func validateChain(srcUnit UnitKind, stages []Stage, sink Sink) error {
	current := srcUnit
	sawEncoder := false

	for i, st := range stages {
		if sawEncoder {
			return avutil.Newf("pipeline", avutil.KindInvalidArgument,
				"stage %d (%s) follows an encoder; spec.md's allowed shapes never continue a chain past the encoder", i, st.Kind())
		}
		if st.InputUnit() != current {
			return avutil.Newf("pipeline", avutil.KindInvalidArgument,
				"stage %d (%s) expects %s input but upstream produces %s", i, st.Kind(), st.InputUnit(), current)
		}
		current = st.OutputUnit()
		if st.Kind() == StageKindEncoder {
			sawEncoder = true
		}
	}

	if sinkUnit, ok := sink.unit(); ok {
		if sinkUnit != current {
			return avutil.Newf("pipeline", avutil.KindInvalidArgument,
				"sink expects %s but chain produces %s", sinkUnit, current)
		}
	}
	return nil
}

// terminalUnit reports the unit kind a stage chain ultimately produces,
// for Partial pipelines that have no sink to validate against.
func terminalUnit(srcUnit UnitKind, stages []Stage) UnitKind {
	current := srcUnit
	for _, st := range stages {
		current = st.OutputUnit()
	}
	return current
}
