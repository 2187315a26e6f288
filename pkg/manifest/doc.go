/*
Package manifest loads colony configuration from YAML files.

Manifests use a kind-dispatched envelope: every document carries an
apiVersion, a kind, metadata, and a kind-specific spec. Supported kinds
are ModuleConfig, SubModuleConfig, UpgradePath, Building, and
AutomationRule. A file may hold several documents separated by "---";
LoadDir combines every .yaml/.yml file in a directory into one Bundle.

	apiVersion: starhold/v1
	kind: ModuleConfig
	metadata:
	  name: Deep Space Radar
	spec:
	  type: radar
	  requirements:
	    resourceCosts:
	      - type: minerals
	        amount: 150
	  baseStats:
	    range: 100
	  subModuleSupport: true
	  maxSubModules: 3

Durations (rule cooldowns, intervals) use Go duration syntax ("90s",
"15m"). Custom rules carry function-valued predicates and cannot be
expressed in YAML; they are rejected with an error.
*/
package manifest
