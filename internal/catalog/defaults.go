package catalog

const defaultCatalog = `- name: Fire Safety
  tasks:
    - task_id: fire_risk_assessment
      label: Fire Risk Assessment
      type: upload
      frequency: Annually
      points: 20
      category: statutory
      info_popup: "Full FRA by a competent assessor, reviewed annually."
    - task_id: fire_alarm_service_certificate
      label: Fire Alarm Service Certificate
      type: upload
      frequency: Quarterly
      points: 10
      category: statutory
    - task_id: emergency_lighting_certificate
      label: Emergency Lighting Test Certificate
      type: upload
      frequency: Annually
      points: 10
      category: statutory
    - task_id: fire_extinguisher_service
      label: Fire Extinguisher Service Record
      type: upload
      frequency: Annually
      points: 10
      category: statutory
    - task_id: sprinkler_system_service
      label: Sprinkler System Service Certificate
      type: upload
      frequency: Annually
      points: 10
      category: statutory
    - task_id: fire_drill_record
      label: Fire Drill Carried Out
      type: confirmation
      frequency: Monthly
      points: 5
      category: best_practice
      needs_report: "no"
    - task_id: fire_door_inspection
      label: Fire Door Checks Completed
      type: confirmation
      frequency: Monthly
      points: 5
      category: best_practice
      needs_report: "no"

- name: Water Safety
  tasks:
    - task_id: legionella_risk_assessment
      label: Legionella Risk Assessment
      type: upload
      frequency: Biennially
      points: 15
      category: statutory
    - task_id: water_temperature_checks
      label: Water Temperature Checks Logged
      type: confirmation
      frequency: Monthly
      points: 5
      category: statutory
      needs_report: "no"
    - task_id: pool_water_testing
      label: Pool Water Test Certificate
      type: upload
      frequency: Quarterly
      points: 10
      category: statutory
    - task_id: spa_water_testing
      label: Spa Water Test Certificate
      type: upload
      frequency: Quarterly
      points: 10
      category: statutory

- name: Electrical & Gas
  tasks:
    - task_id: eicr
      label: Electrical Installation Condition Report (EICR)
      type: upload
      frequency: Every 5 Years
      points: 15
      category: statutory
    - task_id: pat_testing
      label: Portable Appliance Testing (PAT)
      type: upload
      frequency: Annually
      points: 10
      category: statutory
    - task_id: gas_safety_certificate
      label: Gas Safety Certificate
      type: upload
      frequency: Annually
      points: 15
      category: statutory
    - task_id: generator_service
      label: Generator Service Record
      type: upload
      frequency: Annually
      points: 5
      category: best_practice

- name: Mechanical
  tasks:
    - task_id: boiler_service
      label: Boiler Service Certificate
      type: upload
      frequency: Annually
      points: 10
      category: statutory
    - task_id: lift_service_certificate
      label: Lift Service Certificate (LOLER)
      type: upload
      frequency: Twice Annually
      points: 10
      category: statutory
    - task_id: kitchen_extract_cleaning
      label: Kitchen Extract Deep Clean Certificate
      type: upload
      frequency: Twice Annually
      points: 10
      category: statutory
    - task_id: air_conditioning_inspection
      label: Air Conditioning Inspection (TM44)
      type: upload
      frequency: Every 5 Years
      points: 5
      category: statutory

- name: Food Safety & Housekeeping
  tasks:
    - task_id: fridge_temperature_checks
      label: Fridge Temperature Checks Logged
      type: confirmation
      frequency: Monthly
      points: 5
      category: statutory
      needs_report: "no"
    - task_id: pest_control_inspection
      label: Pest Control Inspection Report
      type: upload
      frequency: Quarterly
      points: 10
      category: best_practice
    - task_id: first_aid_kit_check
      label: First Aid Kits Checked and Restocked
      type: confirmation
      frequency: Monthly
      points: 5
      category: best_practice
      needs_report: "no"
`
