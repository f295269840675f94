package mcc

import "github.com/upb/card-control-plane/models"

// table maps network merchant category codes to budget categories. Entries
// are a versioned data asset: budget reports depend on exact assignments, so
// additions and removals must be deliberate.
var table = map[string]models.BudgetCategory{
	// equipment, repair and electronics
	"ac_refrigeration_repair":               models.CategoryEquipment,
	"auto_repair_shop":                      models.CategoryEquipment,
	"camera_and_photographic_supply_stores": models.CategoryEquipment,
	"commercial_equipment":                  models.CategoryEquipment,
	"computer_repair":                       models.CategoryEquipment,
	"computer_software_stores":              models.CategoryEquipment,
	"computers_peripherals_and_software":    models.CategoryEquipment,
	"electrical_services":                   models.CategoryEquipment,
	"electronics_repair_shops":              models.CategoryEquipment,
	"electronics_stores":                    models.CategoryEquipment,
	"equipment_rental":                      models.CategoryEquipment,
	"heating_plumbing_a_c":                  models.CategoryEquipment,
	"medical_dental_ophthalmic_and_hospital_equipment_and_supplies": models.CategoryEquipment,
	"office_and_commercial_furniture":                               models.CategoryEquipment,
	"small_appliance_repair":                                        models.CategoryEquipment,
	"telecommunication_equipment_and_telephone_sales":               models.CategoryEquipment,
	"telecommunication_services":                                    models.CategoryEquipment,
	"telegraph_services":                                            models.CategoryEquipment,
	"utilities":                                                     models.CategoryEquipment,
	"video_amusement_game_supplies":                                 models.CategoryEquipment,

	// parts, supplies and raw materials
	"auto_paint": models.CategoryPartsAndMaterials,
	"automotive_parts_and_accessories_stores":               models.CategoryPartsAndMaterials,
	"automotive_tire_stores":                                models.CategoryPartsAndMaterials,
	"business_supplies":                                     models.CategoryPartsAndMaterials,
	"chemicals_and_allied_products":                         models.CategoryPartsAndMaterials,
	"construction_materials":                                models.CategoryPartsAndMaterials,
	"drugs_drug_proprietaries_and_druggist_sundries":        models.CategoryPartsAndMaterials,
	"electrical_parts_and_equipment":                        models.CategoryPartsAndMaterials,
	"florists_supplies_nursery_stock_and_flowers":           models.CategoryPartsAndMaterials,
	"fuel_dealers_non_automotive":                           models.CategoryPartsAndMaterials,
	"glass_paint_and_wallpaper_stores":                      models.CategoryPartsAndMaterials,
	"hardware_equipment_and_supplies":                       models.CategoryPartsAndMaterials,
	"hardware_stores":                                       models.CategoryPartsAndMaterials,
	"lumber_building_materials_stores":                      models.CategoryPartsAndMaterials,
	"motor_vehicle_supplies_and_new_parts":                  models.CategoryPartsAndMaterials,
	"nurseries_lawn_and_garden_supply_stores":               models.CategoryPartsAndMaterials,
	"paints_varnishes_and_supplies":                         models.CategoryPartsAndMaterials,
	"petroleum_and_petroleum_products":                      models.CategoryPartsAndMaterials,
	"plumbing_heating_equipment_and_supplies":               models.CategoryPartsAndMaterials,
	"stationary_office_supplies_printing_and_writing_paper": models.CategoryPartsAndMaterials,
	"stationery_stores_office_and_school_supply_stores":     models.CategoryPartsAndMaterials,
	"tire_retreading_and_repair":                            models.CategoryPartsAndMaterials,

	// transport, lodging and fuel
	"airlines_air_carriers":               models.CategoryTravel,
	"car_rental_agencies":                 models.CategoryTravel,
	"commuter_transport_and_ferries":      models.CategoryTravel,
	"courier_services":                    models.CategoryTravel,
	"cruise_lines":                        models.CategoryTravel,
	"direct_marketing_travel":             models.CategoryTravel,
	"motor_freight_carriers_and_trucking": models.CategoryTravel,
	"passenger_railways":                  models.CategoryTravel,
	"postal_services_government_only":     models.CategoryTravel,
	"railroads":                           models.CategoryTravel,
	"recreational_vehicle_rentals":        models.CategoryTravel,
	"taxicabs_limousines":                 models.CategoryTravel,
	"t_ui_travel_germany":                 models.CategoryTravel,
	"tolls_bridge_fees":                   models.CategoryTravel,
	"transportation_services":             models.CategoryTravel,
	"travel_agencies_tour_operators":      models.CategoryTravel,
	"truck_stop_iteration":                models.CategoryTravel,
	"truck_utility_trailer_rentals":       models.CategoryTravel,

	// education and professional services
	"accounting_bookkeeping_services": models.CategoryTraining,
	"child_care_services":             models.CategoryTraining,
	"chiropodists_podiatrists":        models.CategoryTraining,
	"chiropractors":                   models.CategoryTraining,
	"colleges_universities":           models.CategoryTraining,
	"computer_programming":            models.CategoryTraining,
	"consulting_public_relations":     models.CategoryTraining,
	"correspondence_schools":          models.CategoryTraining,
	"counseling_services":             models.CategoryTraining,
	"dance_hall_studios_schools":      models.CategoryTraining,
	"dentists_orthodontists":          models.CategoryTraining,
	"doctors":                         models.CategoryTraining,
	"educational_services":            models.CategoryTraining,
	"elementary_secondary_schools":    models.CategoryTraining,
	"employment_temp_agencies":        models.CategoryTraining,
	"medical_and_dental_labs":         models.CategoryTraining,
	"medical_services":                models.CategoryTraining,
	"nursing_personal_care":           models.CategoryTraining,
	"optometrists_ophthalmologist":    models.CategoryTraining,
	"osteopaths":                      models.CategoryTraining,
	"professional_services":           models.CategoryTraining,
	"secretarial_support_services":    models.CategoryTraining,
	"tax_preparation_services":        models.CategoryTraining,
	"testing_laboratories":            models.CategoryTraining,
	"veterinary_services":             models.CategoryTraining,
	"vocational_trade_schools":        models.CategoryTraining,

	// advertising, media and printing
	"advertising_services":                                     models.CategoryMarketing,
	"charitable_and_social_service_organizations":              models.CategoryMarketing,
	"commercial_photography_art_and_graphics":                  models.CategoryMarketing,
	"dating_escort_services":                                   models.CategoryMarketing,
	"direct_marketing_catalog_merchant":                        models.CategoryMarketing,
	"direct_marketing_combination_catalog_and_retail_merchant": models.CategoryMarketing,
	"direct_marketing_inbound_telemarketing":                   models.CategoryMarketing,
	"direct_marketing_other":                                   models.CategoryMarketing,
	"direct_marketing_outbound_telemarketing":                  models.CategoryMarketing,
	"direct_marketing_subscription":                            models.CategoryMarketing,
	"door_to_door_sales":                                       models.CategoryMarketing,
	"membership_organizations":                                 models.CategoryMarketing,
	"miscellaneous_publishing_and_printing":                    models.CategoryMarketing,
	"picture_video_production":                                 models.CategoryMarketing,
	"political_organizations":                                  models.CategoryMarketing,
	"quick_copy_repro_and_blueprint":                           models.CategoryMarketing,
	"religious_organizations":                                  models.CategoryMarketing,
	"typesetting_plate_making_and_related_services":            models.CategoryMarketing,

	// jewelry and precious stones
	"jewelry_stores_watches_clocks_and_silverware_stores": models.CategoryDiamondInventory,
	"precious_stones_and_metals_watches_and_jewelry":      models.CategoryDiamondInventory,
	"watch_jewelry_repair":                                models.CategoryDiamondInventory,

	// legal, protective and detective services
	"bail_and_bond_payments":                         models.CategorySecurity,
	"court_costs":                                    models.CategorySecurity,
	"detective_agencies":                             models.CategorySecurity,
	"fines_government_administrative_entities":       models.CategorySecurity,
	"government_services":                            models.CategorySecurity,
	"legal_services_attorneys":                       models.CategorySecurity,
	"security_brokers_dealers":                       models.CategorySecurity,
	"tax_payments_government_agencies":               models.CategorySecurity,
	"u_s_federal_government_agencies_or_departments": models.CategorySecurity,

	// financial institutions and insurance
	"credit_reporting_agencies":              models.CategoryInsurance,
	"direct_marketing_insurance_services":    models.CategoryInsurance,
	"financial_institutions":                 models.CategoryInsurance,
	"manual_cash_disburse":                   models.CategoryInsurance,
	"non_fi_money_orders":                    models.CategoryInsurance,
	"non_fi_stored_value_card_purchase_load": models.CategoryInsurance,
	"wires_money_orders":                     models.CategoryInsurance,

	// apparel and textiles
	"apparel_accessory_stores":                        models.CategoryFabricAndMaterials,
	"carpet_upholstery_cleaning":                      models.CategoryFabricAndMaterials,
	"clothing_rental":                                 models.CategoryFabricAndMaterials,
	"commercial_footwear":                             models.CategoryFabricAndMaterials,
	"drapery_window_covering_and_upholstery_stores":   models.CategoryFabricAndMaterials,
	"dry_cleaners":                                    models.CategoryFabricAndMaterials,
	"family_clothing_stores":                          models.CategoryFabricAndMaterials,
	"furriers_and_fur_shops":                          models.CategoryFabricAndMaterials,
	"laundries":                                       models.CategoryFabricAndMaterials,
	"laundry_cleaning_services":                       models.CategoryFabricAndMaterials,
	"luggage_and_leather_goods_stores":                models.CategoryFabricAndMaterials,
	"mens_and_boys_clothing_and_accessories_stores":   models.CategoryFabricAndMaterials,
	"mens_womens_clothing_stores":                     models.CategoryFabricAndMaterials,
	"miscellaneous_apparel_and_accessory_shops":       models.CategoryFabricAndMaterials,
	"piece_goods_notions_and_other_dry_goods":         models.CategoryFabricAndMaterials,
	"sewing_needlework_fabric_and_piece_goods_stores": models.CategoryFabricAndMaterials,
	"shoe_repair_hat_cleaning":                        models.CategoryFabricAndMaterials,
	"shoe_stores":                                     models.CategoryFabricAndMaterials,
	"tailors_alterations":                             models.CategoryFabricAndMaterials,
	"tent_and_awning_shops":                           models.CategoryFabricAndMaterials,
	"uniforms_commercial_clothing":                    models.CategoryFabricAndMaterials,
	"wig_and_toupee_stores":                           models.CategoryFabricAndMaterials,
	"womens_accessory_and_specialty_shops":            models.CategoryFabricAndMaterials,
	"womens_ready_to_wear_stores":                     models.CategoryFabricAndMaterials,

	// trade contractors and industrial services
	"carpentry_services":              models.CategoryManufacturing,
	"cleaning_and_maintenance":        models.CategoryManufacturing,
	"concrete_work_services":          models.CategoryManufacturing,
	"exterminating_services":          models.CategoryManufacturing,
	"general_services":                models.CategoryManufacturing,
	"landscaping_services":            models.CategoryManufacturing,
	"masonry_stonework_and_plaster":   models.CategoryManufacturing,
	"metal_service_centers":           models.CategoryManufacturing,
	"miscellaneous_business_services": models.CategoryManufacturing,
	"miscellaneous_general_services":  models.CategoryManufacturing,
	"public_warehousing_and_storage":  models.CategoryManufacturing,
	"roofing_siding_sheet_metal":      models.CategoryManufacturing,
	"special_trade_services":          models.CategoryManufacturing,
	"specialty_cleaning":              models.CategoryManufacturing,
	"welding_repair":                  models.CategoryManufacturing,
	"wrecking_and_salvage_yards":      models.CategoryManufacturing,

	// general retail, food and hospitality
	"bakeries":                               models.CategoryRetailSpace,
	"bars_and_nightclubs":                    models.CategoryRetailSpace,
	"beauty_salons":                          models.CategoryRetailSpace,
	"bicycle_shops":                          models.CategoryRetailSpace,
	"book_stores":                            models.CategoryRetailSpace,
	"candy_nut_and_confectionery_stores":     models.CategoryRetailSpace,
	"caterers":                               models.CategoryRetailSpace,
	"cigar_stores_and_stands":                models.CategoryRetailSpace,
	"country_clubs":                          models.CategoryRetailSpace,
	"dairy_products_stores":                  models.CategoryRetailSpace,
	"department_stores":                      models.CategoryRetailSpace,
	"discount_stores":                        models.CategoryRetailSpace,
	"drinking_places":                        models.CategoryRetailSpace,
	"drug_stores_and_pharmacies":             models.CategoryRetailSpace,
	"duty_free_stores":                       models.CategoryRetailSpace,
	"eating_places_restaurants":              models.CategoryRetailSpace,
	"electric_razor_stores":                  models.CategoryRetailSpace,
	"fast_food_restaurants":                  models.CategoryRetailSpace,
	"florists":                               models.CategoryRetailSpace,
	"freezer_and_locker_meat_provisioners":   models.CategoryRetailSpace,
	"funeral_services_crematories":           models.CategoryRetailSpace,
	"gift_card_novelty_and_souvenir_shops":   models.CategoryRetailSpace,
	"glassware_crystal_stores":               models.CategoryRetailSpace,
	"golf_courses_public":                    models.CategoryRetailSpace,
	"grocery_stores_supermarkets":            models.CategoryRetailSpace,
	"health_and_beauty_spas":                 models.CategoryRetailSpace,
	"massage_parlors":                        models.CategoryRetailSpace,
	"miscellaneous_food_stores":              models.CategoryRetailSpace,
	"miscellaneous_general_merchandise":      models.CategoryRetailSpace,
	"miscellaneous_recreation_services":      models.CategoryRetailSpace,
	"miscellaneous_specialty_retail":         models.CategoryRetailSpace,
	"mobile_home_dealers":                    models.CategoryRetailSpace,
	"motion_picture_theaters":                models.CategoryRetailSpace,
	"motor_homes_dealers":                    models.CategoryRetailSpace,
	"motorcycle_shops_and_dealers":           models.CategoryRetailSpace,
	"motorcycle_shops_dealers":               models.CategoryRetailSpace,
	"news_dealers_and_newsstands":            models.CategoryRetailSpace,
	"package_stores_beer_wine_and_liquor":    models.CategoryRetailSpace,
	"parking_lots_garages":                   models.CategoryRetailSpace,
	"pawn_shops":                             models.CategoryRetailSpace,
	"pet_shops_pet_food_and_supplies":        models.CategoryRetailSpace,
	"photographic_studios":                   models.CategoryRetailSpace,
	"record_stores":                          models.CategoryRetailSpace,
	"religious_goods_stores":                 models.CategoryRetailSpace,
	"service_stations":                       models.CategoryRetailSpace,
	"snowmobile_dealers":                     models.CategoryRetailSpace,
	"sporting_goods_stores":                  models.CategoryRetailSpace,
	"sporting_recreation_camps":              models.CategoryRetailSpace,
	"sports_clubs_fields":                    models.CategoryRetailSpace,
	"stamp_and_coin_stores":                  models.CategoryRetailSpace,
	"theatrical_ticket_agencies":             models.CategoryRetailSpace,
	"timeshares":                             models.CategoryRetailSpace,
	"tourist_attractions_and_exhibits":       models.CategoryRetailSpace,
	"trailer_parks_campgrounds":              models.CategoryRetailSpace,
	"used_merchandise_and_secondhand_stores": models.CategoryRetailSpace,
	"variety_stores":                         models.CategoryRetailSpace,
	"video_game_arcades":                     models.CategoryRetailSpace,
	"video_tape_rental_stores":               models.CategoryRetailSpace,
	"wholesale_clubs":                        models.CategoryRetailSpace,
}
