package payload

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/muzima/registration-worker/issues"
)

// xmlFields addresses flat child elements by tag name
type xmlFields struct {
	elements []*etree.Element
}

func (x xmlFields) value(key string) (string, bool) {
	for _, element := range x.elements {
		if element.Tag == key {
			return strings.TrimSpace(element.Text()), true
		}
	}
	return "", false
}

func (x xmlFields) values(key string) []string {
	var values []string
	for _, element := range x.elements {
		if element.Tag == key {
			values = append(values, strings.TrimSpace(element.Text()))
		}
	}
	return values
}

func parseXML(payload string, list *issues.List) (*etree.Element, *etree.Element, *etree.Document, bool) {
	document := etree.NewDocument()
	if err := document.ReadFromString(payload); err != nil {
		list.Fatal(issues.Structural, "", "payload is not valid xml: %s", err.Error())
		return nil, nil, nil, false
	}
	if document.Root() == nil {
		list.Fatal(issues.Structural, "", "payload does not have a root element")
		return nil, nil, nil, false
	}

	patient := findElement(document, "patient")
	if patient == nil {
		list.Fatal(issues.Structural, "patient", "payload does not have a patient element")
		return nil, nil, nil, false
	}
	return patient, findElement(document, "encounter"), document, true
}

func findElement(document *etree.Document, tag string) *etree.Element {
	if root := document.Root(); root.Tag == tag {
		return root
	}
	return document.FindElement("//" + tag)
}

func newXMLFields(patient, encounter *etree.Element) xmlFields {
	elements := patient.ChildElements()
	if encounter != nil {
		elements = append(elements, encounter.ChildElements()...)
	}
	return xmlFields{elements: elements}
}

func (e *Extractor) extractXMLRegistration(payload string, extraction *Extraction) {
	patient, encounter, _, ok := parseXML(payload, &extraction.Issues)
	if !ok {
		return
	}

	src := newXMLFields(patient, encounter)
	extraction.Patient = readCandidate(src, e.config.PreferredIdentifierType, &extraction.Issues)
	extraction.Encounter = readEncounter(src, &extraction.Issues)
}

func (e *Extractor) extractXMLEncounter(payload string, extraction *Extraction) {
	patient, encounter, document, ok := parseXML(payload, &extraction.Issues)
	if !ok {
		return
	}

	extraction.Patient = readCandidate(newXMLFields(patient, encounter), e.config.PreferredIdentifierType, &extraction.Issues)
	if encounter != nil {
		extraction.Encounter = readEncounter(xmlFields{elements: encounter.ChildElements()}, &extraction.Issues)
	}
	extraction.Encounter.PreferFormEncounterType = true

	obs := findElement(document, "obs")
	if obs == nil {
		return
	}
	for _, element := range obs.ChildElements() {
		// elements without attributes are form scratch values, elements without content were not answered
		if len(element.Attr) == 0 || !hasContent(element) {
			continue
		}
		readXMLObs(&extraction.Obs, nil, element, &extraction.Issues)
	}
}

func hasContent(element *etree.Element) bool {
	return len(element.ChildElements()) > 0 || strings.TrimSpace(element.Text()) != ""
}

// readXMLObs reads an element carrying a concept attribute. A <value> child makes a leaf, an <xforms_value>
// child lists the sibling elements whose concepts are the selected answers, anything else is a group of the
// concept-bearing children.
func readXMLObs(tree *ObsTree, parent *ObsId, element *etree.Element, list *issues.List) {
	concept, err := ParseConceptKey(element.SelectAttrValue("concept", ""), false)
	if err != nil {
		list.Warn(issues.Structural, element.Tag, "skipping observation: %s", err.Error())
		return
	}

	if value := element.SelectElement("value"); value != nil {
		if v := strings.TrimSpace(value.Text()); v != "" {
			tree.Add(parent, ObsNode{Concept: concept, Value: v})
		}
		return
	}

	if selected := element.SelectElement("xforms_value"); selected != nil {
		for _, name := range strings.Fields(selected.Text()) {
			answer := element.SelectElement(name)
			if answer == nil {
				continue
			}
			if coded := answer.SelectAttrValue("concept", ""); coded != "" {
				tree.Add(parent, ObsNode{Concept: concept, Value: coded})
			}
		}
		return
	}

	group := tree.Add(parent, ObsNode{Concept: concept, Group: true})
	for _, child := range element.ChildElements() {
		if child.SelectAttr("concept") != nil {
			readXMLObs(tree, &group, child, list)
		}
	}
}
