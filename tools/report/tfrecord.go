/*
 * Copyright 2020 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 *     Unless required by applicable law or agreed to in writing, software
 *     distributed under the License is distributed on an "AS IS" BASIS,
 *     WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *     See the License for the specific language governing permissions and
 *     limitations under the License.
 */
package report

import (
	"fmt"
	"io"
	"reflect"

	"github.com/pkg/errors"
	"github.com/ryszard/tfutils/go/tfrecord"
	"google.golang.org/protobuf/proto"

	proto1 "github.com/golang/protobuf/proto"
	tf "github.com/ryszard/tfutils/proto/tensorflow/core/example"
)

func floatFeature(floats []float32) *tf.Feature {
	return &tf.Feature{Kind: &tf.Feature_FloatList{FloatList: &tf.FloatList{Value: floats}}}
}

func float32s(values []float64) []float32 {
	result := make([]float32, len(values))
	for idx := range values {
		result[idx] = float32(values[idx])
	}
	return result
}

// addFeatures flattens val into features of ex, named by their path from namePrefix.
// Struct fields tagged `proto:"-"` and nil pointers are skipped.
func addFeatures(val reflect.Value, namePrefix string, ex *tf.Example) error {
	typ := val.Type()
	switch typ.Kind() {
	case reflect.String:
		ex.Features.Feature[namePrefix] = &tf.Feature{Kind: &tf.Feature_BytesList{BytesList: &tf.BytesList{Value: [][]byte{[]byte(val.String())}}}}
	case reflect.Float32, reflect.Float64:
		ex.Features.Feature[namePrefix] = floatFeature([]float32{float32(val.Float())})
	case reflect.Int, reflect.Int32, reflect.Int64:
		ex.Features.Feature[namePrefix] = &tf.Feature{Kind: &tf.Feature_Int64List{Int64List: &tf.Int64List{Value: []int64{val.Int()}}}}
	case reflect.Slice:
		switch typ.Elem().Kind() {
		case reflect.Struct, reflect.Slice:
			for elemIdx := 0; elemIdx < val.Len(); elemIdx++ {
				if err := addFeatures(val.Index(elemIdx), fmt.Sprintf("%v[%v]", namePrefix, elemIdx), ex); err != nil {
					return err
				}
			}
		case reflect.Float64:
			floats := make([]float32, val.Len())
			for idx := range floats {
				floats[idx] = float32(val.Index(idx).Float())
			}
			ex.Features.Feature[namePrefix] = floatFeature(floats)
		default:
			return fmt.Errorf("%v is of an invalid slice type %v", namePrefix, typ)
		}
	case reflect.Struct:
		for fieldIdx := 0; fieldIdx < typ.NumField(); fieldIdx++ {
			fieldTyp := typ.Field(fieldIdx)
			if fieldTyp.IsExported() && fieldTyp.Tag.Get("proto") != "-" {
				if err := addFeatures(val.Field(fieldIdx), namePrefix+"."+fieldTyp.Name, ex); err != nil {
					return err
				}
			}
		}
	case reflect.Ptr:
		if !val.IsNil() {
			return addFeatures(val.Elem(), namePrefix, ex)
		}
	default:
		return fmt.Errorf("%v is of an invalid type %v", namePrefix, typ)
	}
	return nil
}

// TFExamples returns one tf.Example per signal, containing the configuration, the entry,
// the samples and the spectra up to the Nyquist frequency.
func (r *Report) TFExamples() ([]*tf.Example, error) {
	result := make([]*tf.Example, len(r.Entries))
	for idx, entry := range r.Entries {
		ex := &tf.Example{
			Features: &tf.Features{
				Feature: map[string]*tf.Feature{},
			},
		}
		if err := addFeatures(reflect.ValueOf(r.Config), "Config", ex); err != nil {
			return nil, err
		}
		if err := addFeatures(reflect.ValueOf(entry), "Signal", ex); err != nil {
			return nil, err
		}
		res := r.results[idx]
		ex.Features.Feature["Signal.Clean.Samples"] = floatFeature(float32s(res.Clean))
		ex.Features.Feature["Signal.Noisy.Samples"] = floatFeature(float32s(res.Noisy))
		ex.Features.Feature["Signal.Clean.Spectrum"] = floatFeature(float32s(res.CleanSpectrum.Half()))
		ex.Features.Feature["Signal.Noisy.Spectrum"] = floatFeature(float32s(res.NoisySpectrum.Half()))
		result[idx] = ex
	}
	return result, nil
}

// WriteTFRecord writes TFExamples as a TFRecord file.
func (r *Report) WriteTFRecord(w io.Writer) error {
	examples, err := r.TFExamples()
	if err != nil {
		return errors.Wrap(err, "unable to convert report")
	}
	for _, example := range examples {
		encoded, err := proto.Marshal(proto1.MessageV2(example))
		if err != nil {
			return errors.Wrap(err, "unable to marshal example")
		}
		if err := tfrecord.Write(w, encoded); err != nil {
			return errors.Wrap(err, "unable to write record")
		}
	}
	return nil
}
