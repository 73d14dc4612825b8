package asl

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, definition, input string) string {
	t.Helper()
	out, err := Run(definition, input)
	require.NoError(t, err)
	return out
}

func TestPassResult(t *testing.T) {
	def := `{"StartAt":"P","States":{"P":{"Type":"Pass","Result":"X","End":true}}}`
	assert.JSONEq(t, `"X"`, run(t, def, `{"ignored":true}`))
}

func TestPassResultPathMergesIntoInput(t *testing.T) {
	def := `{"StartAt":"P","States":{"P":{"Type":"Pass","Result":{"b":2},"ResultPath":"$.out","End":true}}}`
	assert.JSONEq(t, `{"a":1,"out":{"b":2}}`, run(t, def, `{"a":1}`))
}

func TestPassOutputPathSelectsSubtree(t *testing.T) {
	def := `{"StartAt":"P","States":{"P":{"Type":"Pass","OutputPath":"$.a.b","End":true}}}`
	assert.JSONEq(t, `7`, run(t, def, `{"a":{"b":7}}`))
}

func TestPassParametersSubstitution(t *testing.T) {
	def := `{"StartAt":"P","States":{"P":{"Type":"Pass","Parameters":{"fixed":1,"copied.$":"$.v"},"End":true}}}`
	assert.JSONEq(t, `{"fixed":1,"copied":"hello"}`, run(t, def, `{"v":"hello"}`))
}

func TestChoiceNumericEqualsRouting(t *testing.T) {
	def := `{"StartAt":"C","States":{
	  "C":{"Type":"Choice","Choices":[{"Variable":"$.v","NumericEquals":1,"Next":"A"}],"Default":"B"},
	  "A":{"Type":"Pass","Result":"1","End":true},
	  "B":{"Type":"Pass","Result":"2","End":true}}}`
	assert.JSONEq(t, `"1"`, run(t, def, `{"v":1}`))
	assert.JSONEq(t, `"2"`, run(t, def, `{"v":2}`))
}

func TestChoiceFirstMatchWins(t *testing.T) {
	def := `{"StartAt":"C","States":{
	  "C":{"Type":"Choice","Choices":[
	    {"Variable":"$.v","NumericGreaterThan":0,"Next":"A"},
	    {"Variable":"$.v","NumericGreaterThan":5,"Next":"B"}],"Default":"B"},
	  "A":{"Type":"Succeed"},
	  "B":{"Type":"Fail","Error":"WrongBranch","Cause":"second rule should not win"}}}`
	out, err := Run(def, `{"v":10}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":10}`, out)
}

func TestChoiceComposition(t *testing.T) {
	def := `{"StartAt":"C","States":{
	  "C":{"Type":"Choice","Choices":[
	    {"And":[
	      {"Variable":"$.a","BooleanEquals":true},
	      {"Not":{"Variable":"$.s","StringEquals":"skip"}}],
	     "Next":"Y"}],
	   "Default":"N"},
	  "Y":{"Type":"Pass","Result":"yes","End":true},
	  "N":{"Type":"Pass","Result":"no","End":true}}}`
	assert.JSONEq(t, `"yes"`, run(t, def, `{"a":true,"s":"go"}`))
	assert.JSONEq(t, `"no"`, run(t, def, `{"a":true,"s":"skip"}`))
	assert.JSONEq(t, `"no"`, run(t, def, `{"a":false,"s":"go"}`))
}

func TestChoiceMissingPathEvaluatesFalse(t *testing.T) {
	def := `{"StartAt":"C","States":{
	  "C":{"Type":"Choice","Choices":[{"Variable":"$.missing.deep","NumericEquals":1,"Next":"A"}],"Default":"B"},
	  "A":{"Type":"Pass","Result":"a","End":true},
	  "B":{"Type":"Pass","Result":"b","End":true}}}`
	assert.JSONEq(t, `"b"`, run(t, def, `{"v":1}`))
}

func TestChoiceNoMatchNoDefaultFails(t *testing.T) {
	def := `{"StartAt":"C","States":{
	  "C":{"Type":"Choice","Choices":[{"Variable":"$.v","NumericEquals":1,"Next":"A"}]},
	  "A":{"Type":"Succeed"}}}`
	_, err := Run(def, `{"v":9}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "States.NoChoiceMatched")
}

func TestFailSurfacesErrorAndCause(t *testing.T) {
	def := `{"StartAt":"F","States":{"F":{"Type":"Fail","Error":"Boom","Cause":"went wrong"}}}`
	_, err := Run(def, `{}`)
	require.Error(t, err)
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "Boom", execErr.Name)
	assert.Equal(t, "Boom: went wrong", err.Error())
}

func TestParallelBranchOrder(t *testing.T) {
	def := `{"StartAt":"P","States":{"P":{"Type":"Parallel","Branches":[
	  {"StartAt":"B1","States":{"B1":{"Type":"Pass","Result":"first","End":true}}},
	  {"StartAt":"B2","States":{"B2":{"Type":"Pass","Result":"second","End":true}}}],
	  "End":true}}}`
	assert.JSONEq(t, `["first","second"]`, run(t, def, `{}`))
}

func TestMapIteratesInOrder(t *testing.T) {
	def := `{"StartAt":"M","States":{"M":{"Type":"Map","Iterator":
	  {"StartAt":"I","States":{"I":{"Type":"Pass","End":true}}},"End":true}}}`
	assert.JSONEq(t, `["a","b","c"]`, run(t, def, `["a","b","c"]`))
}

func TestMapRejectsNonArray(t *testing.T) {
	def := `{"StartAt":"M","States":{"M":{"Type":"Map","Iterator":
	  {"StartAt":"I","States":{"I":{"Type":"Pass","End":true}}},"End":true}}}`
	_, err := Run(def, `{"not":"an array"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "States.MapInputNotArray")
}

func TestTaskAndWaitPassThrough(t *testing.T) {
	def := `{"StartAt":"T","States":{
	  "T":{"Type":"Task","Resource":"arn:aws:lambda:us-east-1:000000000000:function:f","Next":"W"},
	  "W":{"Type":"Wait","Seconds":3600,"End":true}}}`
	assert.JSONEq(t, `{"v":1}`, run(t, def, `{"v":1}`))
}

func TestRunawayGuard(t *testing.T) {
	def := `{"StartAt":"A","States":{
	  "A":{"Type":"Pass","Next":"B"},
	  "B":{"Type":"Pass","Next":"A"}}}`
	_, err := Run(def, `{}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "States.Runaway")
}

func TestParseRejectsBadDefinitions(t *testing.T) {
	for name, def := range map[string]string{
		"not json":        `{`,
		"no StartAt":      `{"States":{}}`,
		"missing StartAt": `{"StartAt":"X","States":{"Y":{"Type":"Succeed"}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(def)
			assert.Error(t, err)
		})
	}
}

func TestRunOutputIsJSON(t *testing.T) {
	def := `{"StartAt":"P","States":{"P":{"Type":"Pass","Result":{"n":3},"End":true}}}`
	out := run(t, def, `{}`)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, float64(3), decoded["n"])
	assert.False(t, strings.Contains(out, "\n"))
}
