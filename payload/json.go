package payload

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/muzima/registration-worker/issues"
)

// jsonObject addresses the members of a JSON object by their literal name, dots included
type jsonObject struct {
	object gjson.Result
}

func (o jsonObject) member(key string) gjson.Result {
	var found gjson.Result
	if !o.object.IsObject() {
		return found
	}
	o.object.ForEach(func(name, value gjson.Result) bool {
		if name.String() == key {
			found = value
			return false
		}
		return true
	})
	return found
}

func (o jsonObject) value(key string) (string, bool) {
	values := o.values(key)
	if len(values) == 0 {
		return "", o.member(key).Exists()
	}
	return values[0], true
}

func (o jsonObject) values(key string) []string {
	return scalars(o.member(key))
}

// scalars returns the trimmed string form of a scalar or of each scalar of an array
func scalars(result gjson.Result) []string {
	if !result.Exists() || result.Type == gjson.Null {
		return nil
	}
	if !result.IsArray() {
		return []string{strings.TrimSpace(result.String())}
	}
	var values []string
	for _, element := range result.Array() {
		if element.Type == gjson.Null || element.IsObject() || element.IsArray() {
			continue
		}
		values = append(values, strings.TrimSpace(element.String()))
	}
	return values
}

// dottedFields looks a key up at the top level first and then in the section objects of the payload
type dottedFields struct {
	sections []jsonObject
}

func newDottedFields(root gjson.Result) dottedFields {
	sections := []jsonObject{{object: root}}
	for _, name := range []string{"patient", "encounter", "observation", "person_address"} {
		if section := root.Get(name); section.IsObject() {
			sections = append(sections, jsonObject{object: section})
		}
	}
	return dottedFields{sections: sections}
}

func (d dottedFields) value(key string) (string, bool) {
	for _, section := range d.sections {
		if value, ok := section.value(key); ok {
			return value, true
		}
	}
	return "", false
}

func (d dottedFields) values(key string) []string {
	for _, section := range d.sections {
		if values := section.values(key); len(values) > 0 {
			return values
		}
	}
	return nil
}

// formFields scans an array of {name, value} pairs
type formFields struct {
	entries []gjson.Result
}

func (f formFields) value(key string) (string, bool) {
	for _, entry := range f.entries {
		if entry.Get("name").String() == key {
			values := scalars(entry.Get("value"))
			if len(values) == 0 {
				return "", true
			}
			return values[0], true
		}
	}
	return "", false
}

func (f formFields) values(key string) []string {
	var values []string
	for _, entry := range f.entries {
		if entry.Get("name").String() == key {
			values = append(values, scalars(entry.Get("value"))...)
		}
	}
	return values
}

func parseJSON(payload string, list *issues.List) (gjson.Result, bool) {
	if !gjson.Valid(payload) {
		list.Fatal(issues.Structural, "", "payload is not valid json")
		return gjson.Result{}, false
	}
	root := gjson.Parse(payload)
	if !root.IsObject() {
		list.Fatal(issues.Structural, "", "payload is not a json object")
		return gjson.Result{}, false
	}
	return root, true
}

func (e *Extractor) extractDotted(payload string, extraction *Extraction) {
	root, ok := parseJSON(payload, &extraction.Issues)
	if !ok {
		return
	}

	src := newDottedFields(root)
	extraction.Patient = readCandidate(src, e.config.PreferredIdentifierType, &extraction.Issues)
	extraction.Encounter = readEncounter(src, &extraction.Issues)
}

func (e *Extractor) extractNested(payload string, extraction *Extraction) {
	root, ok := parseJSON(payload, &extraction.Issues)
	if !ok {
		return
	}

	patient := root.Get("patient")
	if !patient.IsObject() {
		extraction.Issues.Fatal(issues.Structural, "patient", "payload does not have a patient object")
		return
	}
	extraction.Patient = readCandidate(jsonObject{object: patient}, e.config.PreferredIdentifierType, &extraction.Issues)

	encounter := root.Get("encounter")
	if inner := encounter.Get("encounter"); inner.IsObject() {
		encounter = inner
	}
	extraction.Encounter = readEncounter(jsonObject{object: encounter}, &extraction.Issues)

	if observation := root.Get("observation"); observation.IsObject() {
		readJSONObs(&extraction.Obs, nil, observation, &extraction.Issues)
	}
}

// readJSONObs adds one node per "<id>^<name>^<source>" member of object. Object and array-of-object
// values become groups, arrays of scalars fan out into one leaf per value.
func readJSONObs(tree *ObsTree, parent *ObsId, object gjson.Result, list *issues.List) {
	object.ForEach(func(name, value gjson.Result) bool {
		concept, err := ParseConceptKey(name.String(), true)
		if err != nil {
			list.Warn(issues.Structural, name.String(), "skipping observation: %s", err.Error())
			return true
		}

		switch {
		case value.IsObject():
			group := tree.Add(parent, ObsNode{Concept: concept, Group: true})
			readJSONObs(tree, &group, value, list)
		case value.IsArray() && hasObjects(value):
			group := tree.Add(parent, ObsNode{Concept: concept, Group: true})
			for _, element := range value.Array() {
				if element.IsObject() {
					readJSONObs(tree, &group, element, list)
				}
			}
		default:
			for _, v := range scalars(value) {
				if v != "" {
					tree.Add(parent, ObsNode{Concept: concept, Value: v})
				}
			}
		}
		return true
	})
}

func hasObjects(array gjson.Result) bool {
	for _, element := range array.Array() {
		if element.IsObject() {
			return true
		}
	}
	return false
}

func (e *Extractor) extractFormFields(payload string, extraction *Extraction) {
	root, ok := parseJSON(payload, &extraction.Issues)
	if !ok {
		return
	}

	entries := root.Get("form.fields")
	if !entries.Exists() {
		entries = jsonObject{object: root}.member("form.fields")
	}
	if !entries.IsArray() {
		extraction.Issues.Fatal(issues.Structural, "form.fields", "payload does not have a form fields array")
		return
	}

	src := formFields{entries: entries.Array()}
	extraction.Patient = readCandidate(src, e.config.PreferredIdentifierType, &extraction.Issues)
	extraction.Encounter = readEncounter(src, &extraction.Issues)
	extraction.Encounter.PreferFormEncounterType = true
	readFormObs(&extraction.Obs, nil, src.entries)
}

// readFormObs treats every field named like a concept reference as an observation. A value made of
// {name, value} pairs is a group of those fields.
func readFormObs(tree *ObsTree, parent *ObsId, entries []gjson.Result) {
	for _, entry := range entries {
		concept, err := ParseConceptKey(entry.Get("name").String(), true)
		if err != nil {
			continue
		}

		value := entry.Get("value")
		switch {
		case value.IsObject():
			group := tree.Add(parent, ObsNode{Concept: concept, Group: true})
			readFormObs(tree, &group, []gjson.Result{value})
		case value.IsArray() && hasObjects(value):
			group := tree.Add(parent, ObsNode{Concept: concept, Group: true})
			readFormObs(tree, &group, value.Array())
		default:
			for _, v := range scalars(value) {
				if v != "" {
					tree.Add(parent, ObsNode{Concept: concept, Value: v})
				}
			}
		}
	}
}
